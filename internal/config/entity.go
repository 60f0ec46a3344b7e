package config

import (
	"fmt"

	"codeberg.org/mutker/followerctl/internal/errors"
	"codeberg.org/mutker/followerctl/internal/fetcher"
)

// Entity is one tracked counter as written in the config file. Either Preset
// (with ID) or Kind/URL and the extraction fields describe the source.
type Entity struct {
	Key    string `mapstructure:"key"`
	Name   string `mapstructure:"name"`
	Color  string `mapstructure:"color"`
	Link   string `mapstructure:"link"`
	Preset string `mapstructure:"preset"`
	ID     string `mapstructure:"id"`

	Kind        string `mapstructure:"kind"`
	URL         string `mapstructure:"url"`
	CountPath   string `mapstructure:"count_path"`
	StatusPath  string `mapstructure:"status_path"`
	StatusOK    int64  `mapstructure:"status_ok"`
	MessagePath string `mapstructure:"message_path"`
	Marker      string `mapstructure:"marker"`
	Pattern     string `mapstructure:"pattern"`

	// Source is filled in by resolve.
	Source fetcher.Source `mapstructure:"-"`

	// sourceErr holds why Source could not be resolved or validated.
	sourceErr error
}

// Check reports a source that failed to resolve. Such an entity is still
// loaded so the rest of the config keeps running; it fails on its own.
func (e Entity) Check() error {
	if e.sourceErr != nil {
		return e.sourceErr
	}
	return e.Source.Validate()
}

// resolve fills Source, Key and Link. Only a missing name is fatal; source
// problems are kept for Check.
func (e *Entity) resolve() error {
	errFactory := errors.New()

	if e.Name == "" {
		return errFactory.WithData(errors.ErrInvalidConfig, "entity without name")
	}

	if e.Preset != "" {
		src, link, err := fetcher.Preset(e.Preset, e.ID)
		if err != nil {
			e.sourceErr = fmt.Errorf("entity %q: %w", e.Name, err)
		}
		e.Source = src
		if e.Link == "" {
			e.Link = link
		}
		if e.Key == "" {
			e.Key = e.Preset + "_" + e.Name
		}
	} else {
		e.Source = fetcher.Source{
			Kind:        fetcher.Kind(e.Kind),
			URL:         e.URL,
			CountPath:   e.CountPath,
			StatusPath:  e.StatusPath,
			StatusOK:    e.StatusOK,
			MessagePath: e.MessagePath,
			Marker:      e.Marker,
			Pattern:     e.Pattern,
		}
		if e.Key == "" {
			e.Key = e.Name
		}
	}

	if e.sourceErr == nil {
		if err := e.Source.Validate(); err != nil {
			e.sourceErr = fmt.Errorf("entity %q: %w", e.Name, err)
		}
	}
	return nil
}
