// Copyright (C) 2025 Lantern AI (oss@lanternstudio.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stagePayload struct {
	Title string   `json:"title"`
	Rows  []string `json:"rows"`
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	in := stagePayload{Title: "findings", Rows: []string{"a", "b"}}
	require.NoError(t, s.PutJSON("run-1", "findings", in))

	var out stagePayload
	found, err := s.GetJSON("run-1", "findings", &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, in, out)
}

func TestGetMissingStage(t *testing.T) {
	s := openTestStore(t)
	var out stagePayload
	found, err := s.GetJSON("run-1", "report", &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestPutReplacesEarlierValue(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutJSON("run-1", "profile", stagePayload{Title: "old"}))
	require.NoError(t, s.PutJSON("run-1", "profile", stagePayload{Title: "new"}))

	var out stagePayload
	found, err := s.GetJSON("run-1", "profile", &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "new", out.Title)
}

func TestDropRunRemovesOnlyThatRun(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.PutJSON("run-1", "profile", stagePayload{Title: "a"}))
	require.NoError(t, s.PutJSON("run-1", "findings", stagePayload{Title: "b"}))
	require.NoError(t, s.PutJSON("run-2", "profile", stagePayload{Title: "c"}))

	require.NoError(t, s.DropRun("run-1"))

	var out stagePayload
	found, err := s.GetJSON("run-1", "profile", &out)
	require.NoError(t, err)
	require.False(t, found)
	found, err = s.GetJSON("run-1", "findings", &out)
	require.NoError(t, err)
	require.False(t, found)

	found, err = s.GetJSON("run-2", "profile", &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "c", out.Title)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}
