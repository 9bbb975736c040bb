package config

import (
	"fmt"
	"slices"
	"strings"
)

// listFlag holds a separated list of values, restricted to a set of
// choices when allowed is not empty. Blank entries are ignored and
// repeated entries are kept once.
type listFlag struct {
	sep     string
	allowed map[string]bool
	value   string
	values  []string
}

func newListFlag(sep string, allowed ...string) *listFlag {
	lf := &listFlag{sep: sep, allowed: make(map[string]bool, len(allowed))}
	for _, a := range allowed {
		lf.allowed[a] = true
	}

	return lf
}

func commaListFlag(allowed ...string) *listFlag {
	return newListFlag(",", allowed...)
}

func (lf *listFlag) Set(value string) error {
	if lf == nil {
		return nil
	}

	return lf.setValues(strings.Split(value, lf.sep))
}

func (lf *listFlag) UnmarshalYAML(unmarshal func(any) error) error {
	var values []string
	if err := unmarshal(&values); err != nil {
		return err
	}

	return lf.setValues(values)
}

func (lf *listFlag) setValues(values []string) error {
	var normalized []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || slices.Contains(normalized, v) {
			continue
		}

		if len(lf.allowed) > 0 && !lf.allowed[v] {
			return fmt.Errorf("flag value not allowed: %s, supported: %s", v, strings.Join(lf.choices(), ", "))
		}

		normalized = append(normalized, v)
	}

	lf.values = normalized
	lf.value = strings.Join(normalized, lf.sep)
	return nil
}

func (lf *listFlag) choices() []string {
	c := make([]string, 0, len(lf.allowed))
	for a := range lf.allowed {
		c = append(c, a)
	}

	slices.Sort(c)
	return c
}

func (lf listFlag) String() string { return lf.value }
