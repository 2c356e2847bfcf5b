package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/emrgen/notebook/internal/compress"
	"github.com/emrgen/notebook/internal/config"
	"github.com/emrgen/notebook/internal/revision"
	"github.com/emrgen/notebook/internal/store"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var revisionsCmd = &cobra.Command{
	Use:   "revisions",
	Short: "inspect record revisions",
	Example: `  notebook revisions list -r <record-id>
  notebook revisions show -r <record-id> -n <number>`,
}

func init() {
	revisionsCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	revisionsCmd.AddCommand(listRevisionsCmd())
	revisionsCmd.AddCommand(showRevisionCmd())
}

func openArchive() (store.Store, *revision.Archiver, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	cfg.SetupLogging()

	db, err := config.GetDb(cfg)
	if err != nil {
		return nil, nil, err
	}

	compressor, err := compress.New(cfg.RevisionCompression)
	if err != nil {
		return nil, nil, err
	}

	return store.NewGormStore(db), revision.NewArchiver(compressor), nil
}

func listRevisionsCmd() *cobra.Command {
	var recordID string

	var required = []string{"record-id"}

	command := &cobra.Command{
		Use:   "list",
		Short: "list revisions of a record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			s, archiver, err := openArchive()
			if err != nil {
				return err
			}

			ctx := context.Background()
			record, err := s.GetRecord(ctx, recordID)
			if err != nil {
				return err
			}
			revisions, err := archiver.List(ctx, s, recordID)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Revision", "Action", "Restored From", "Created By", "Created At"})
			for _, rev := range revisions {
				number := strconv.FormatInt(rev.Number, 10)
				if rev.Number == record.Revision {
					number += " (current)"
				}
				restored := ""
				if rev.RestoredFrom != nil {
					restored = strconv.FormatInt(*rev.RestoredFrom, 10)
				}
				table.Append([]string{number, string(rev.Action), restored, rev.CreatedBy, rev.CreatedAt.Format("2006-01-02 15:04:05")})
			}
			table.Render()

			return nil
		},
	}

	command.Flags().StringVarP(&recordID, "record-id", "r", "", "record id to list revisions")

	return command
}

func showRevisionCmd() *cobra.Command {
	var recordID string
	var number int64

	var required = []string{"record-id", "number"}

	command := &cobra.Command{
		Use:   "show",
		Short: "show the content and links of a revision",
		RunE: func(cmd *cobra.Command, args []string) error {
			if checkMissingFlags(cmd, required) {
				return nil
			}

			s, archiver, err := openArchive()
			if err != nil {
				return err
			}

			ctx := context.Background()
			rev, err := archiver.Get(ctx, s, recordID, number)
			if err != nil {
				return err
			}
			content, err := archiver.Decode(rev)
			if err != nil {
				return err
			}

			names := make(map[string]string, len(rev.Fields))
			for _, field := range rev.Fields {
				names[field.FieldID] = field.Name
			}
			fieldIDs := make([]string, 0, len(content))
			for id := range content {
				fieldIDs = append(fieldIDs, id)
			}
			sort.Strings(fieldIDs)

			fmt.Printf("revision %d of %s (%s by %s)\n\n", rev.Number, rev.RecordID, rev.Action, rev.CreatedBy)
			for _, id := range fieldIDs {
				fmt.Printf("[%s] %s\n%s\n\n", names[id], id, content[id])
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Field", "Kind", "Target", "State"})
			for _, link := range rev.Links {
				table.Append([]string{names[link.FieldID], string(link.Kind), link.TargetID, string(link.State)})
			}
			table.Render()

			return nil
		},
	}

	command.Flags().StringVarP(&recordID, "record-id", "r", "", "record id")
	command.Flags().Int64VarP(&number, "number", "n", 0, "revision number")

	return command
}

func checkMissingFlags(cmd *cobra.Command, flags []string) bool {
	var missingFlags []string
	for _, required := range flags {
		if !cmd.Flag(required).Changed {
			missingFlags = append(missingFlags, "--"+required)
		}
	}

	if len(missingFlags) > 0 {
		fmt.Printf("missing required flags: %s\n", strings.Join(missingFlags, " "))
		_ = cmd.Usage()
		return true
	}

	return false
}
