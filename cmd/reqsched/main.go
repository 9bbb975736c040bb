/*
This command fetches a set of targets over HTTP through the request
scheduler, with a limited number of concurrent requests, ordered by the
priority of the targets.

For the list of command line options, run:

	reqsched -help

The targets are listed in a YAML file passed with -targets-file, e.g.:

  - url: https://tiles.example.org/0/0/0.png
    priority: 2
    distance: 10
    category: imagery
  - url: https://tiles.example.org/terrain/0/0/0.terrain
    throttle: false
*/
package main

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/framekeeper/reqsched"
	"github.com/framekeeper/reqsched/config"
)

var (
	version string
	commit  string
)

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		log.Fatalf("Error processing config: %s", err)
	}

	if cfg.PrintVersion {
		fmt.Printf("reqsched version %s (commit: %s)\n", version, commit)
		return
	}

	if err := reqsched.Run(cfg.ToOptions()); err != nil {
		log.Fatal(err)
	}
}
