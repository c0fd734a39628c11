package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"kvs/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:           "kvsctl",
		Short:         "Embedded key-value store backed by a segmented command log",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(setCmd(), getCmd(), rmCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore opens the store in the working directory, the default data
// directory for the CLI.
func openStore() (*store.Store, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return store.Open(dir)
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set the value of a string key to a string",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Set(args[0], args[1])
		},
	}
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get the string value of a given string key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			value, ok, err := s.Get(args[0])
			if err != nil {
				return err
			}
			if !ok {
				// A missing key is a valid result for get, not a failure.
				fmt.Println("Key not found")
				return nil
			}
			fmt.Println(value)
			return nil
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "Remove a given key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Remove(args[0]); err != nil {
				if errors.Is(err, store.ErrKeyNotFound) {
					return errors.New("Key not found")
				}
				return err
			}
			return nil
		},
	}
}
