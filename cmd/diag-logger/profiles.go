package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sweeney/diag-logger/internal/profile"
	"github.com/sweeney/diag-logger/internal/storage"
)

var (
	green  = color.New(color.FgGreen).SprintfFunc()
	yellow = color.New(color.FgHiYellow).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "list the profiles in the card's configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := profile.LoadFile(filepath.Join(opts.card, profile.FileName))
		if err != nil {
			return err
		}
		printProfiles(cmd.OutOrStdout(), store)
		return nil
	},
}

var nextFileCmd = &cobra.Command{
	Use:   "next-file",
	Short: "print the next free log file on the card",
	RunE: func(cmd *cobra.Command, args []string) error {
		name, err := nextFile(cmd, opts.card)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), name)
		return nil
	},
}

func printProfiles(w io.Writer, store *profile.Store) {
	for i, p := range store.All() {
		groups := make([]string, len(p.Groups))
		for j, g := range p.Groups {
			groups[j] = strconv.Itoa(g)
		}
		fmt.Fprintf(w, "%s %s ecu=%s groups=%s interval=%dms bitrate=%d\n",
			yellow("%d", i+1), green("%-12s", p.Name), fmt.Sprintf("0x%02X", p.ECU),
			strings.Join(groups, ","), p.IntervalMs, p.Bitrate)
	}
}

func nextFile(cmd *cobra.Command, card string) (string, error) {
	m := storage.NewDirMedium(card, nil)
	if err := m.Mount(cmd.Context()); err != nil {
		return "", err
	}
	n, ok := storage.NewManager(m).AllocateNextFileNumber()
	if !ok {
		return "", fmt.Errorf("%s: %w", red("no free log file"), storage.ErrExhausted)
	}
	return storage.FileName(n), nil
}
