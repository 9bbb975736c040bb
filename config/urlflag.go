package config

import (
	"fmt"
	"net/url"
	"strings"
)

// urlFlag collects the values of a repeatable flag taking target urls.
type urlFlag []string

func checkTargetURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid target url: %w", err)
	}

	if u.Scheme == "" {
		return fmt.Errorf("invalid target url, missing scheme: %s", value)
	}

	return nil
}

func (f *urlFlag) String() string {
	if f == nil {
		return ""
	}

	return strings.Join(*f, " ")
}

func (f *urlFlag) Set(value string) error {
	if err := checkTargetURL(value); err != nil {
		return err
	}

	*f = append(*f, value)
	return nil
}

func (f *urlFlag) UnmarshalYAML(unmarshal func(any) error) error {
	var values []string
	if err := unmarshal(&values); err != nil {
		return err
	}

	for _, v := range values {
		if err := checkTargetURL(v); err != nil {
			return err
		}
	}

	*f = values
	return nil
}
