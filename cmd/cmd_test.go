package cmd

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestCheckMissingFlags(t *testing.T) {
	command := &cobra.Command{Use: "test"}
	var recordID string
	command.Flags().StringVarP(&recordID, "record-id", "r", "", "")
	command.SetOut(&discard{})

	assert.True(t, checkMissingFlags(command, []string{"record-id"}))

	assert.NoError(t, command.Flags().Set("record-id", "r1"))
	assert.False(t, checkMissingFlags(command, []string{"record-id"}))
}

func TestRootCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"db", "serve", "revisions"} {
		assert.True(t, names[want], want)
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
