package main

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	"github.com/spf13/afero"

	"github.com/oldmedia/dllexports/go/models"
)

const configName = "dllexports.yaml"

// loadConfig reads path from fs, or without a path the first dllexports.yaml
// found in the user and system config folders. No file means defaults.
func loadConfig(fs afero.Fs, path string) (*models.Config, error) {
	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, errors.Wrap(err, "reading config")
		}
		return parseConfig(data, path)
	}
	dirs := configdir.New("oldmedia", "dllexports")
	folder := dirs.QueryFolderContainsFile(configName)
	if folder == nil {
		return models.DefaultConfig(), nil
	}
	data, err := folder.ReadFile(configName)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	return parseConfig(data, folder.Path)
}

func parseConfig(data []byte, where string) (*models.Config, error) {
	cfg, err := models.LoadConfig(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", where)
	}
	return cfg, nil
}
