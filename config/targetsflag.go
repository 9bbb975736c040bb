package config

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/framekeeper/reqsched"
)

// targetsFlag parses an inline yaml list of targets, in the format of the
// targets file, into the list it points to. Unknown fields are rejected.
type targetsFlag struct {
	targets *[]reqsched.Target
	value   string
}

func newTargetsFlag(targets *[]reqsched.Target) *targetsFlag {
	return &targetsFlag{targets: targets}
}

func (tf *targetsFlag) Set(value string) error {
	var targets []reqsched.Target
	if err := yaml.UnmarshalStrict([]byte(value), &targets); err != nil {
		return fmt.Errorf("failed to parse targets: %w", err)
	}

	if err := tf.set(targets); err != nil {
		return err
	}

	tf.value = value
	return nil
}

func (tf *targetsFlag) UnmarshalYAML(unmarshal func(any) error) error {
	var targets []reqsched.Target
	if err := unmarshal(&targets); err != nil {
		return err
	}

	return tf.set(targets)
}

func (tf *targetsFlag) set(targets []reqsched.Target) error {
	for i, t := range targets {
		if t.URL == "" {
			return fmt.Errorf("target %d: missing url", i)
		}

		if err := checkTargetURL(t.URL); err != nil {
			return fmt.Errorf("target %d: %w", i, err)
		}
	}

	*tf.targets = targets
	return nil
}

func (tf *targetsFlag) String() string {
	if tf == nil {
		return ""
	}

	return tf.value
}
