package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"towermap/internal/auth"
)

type tokenOutput struct {
	Token string `json:"token,omitempty"`
	Hash  string `json:"hash"`
}

func newTokenCmd(jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Create API bearer tokens for scripted marker uploads",
	}
	cmd.AddCommand(newTokenGenerateCmd(jsonOutput), newTokenHashCmd(jsonOutput))
	return cmd
}

func newTokenGenerateCmd(jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate a random token and its bcrypt hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.GenerateAPIToken()
			if err != nil {
				return err
			}
			hash, err := auth.HashAPIToken(token)
			if err != nil {
				return err
			}
			return writeToken(tokenOutput{Token: token, Hash: hash}, *jsonOutput)
		},
	}
}

func newTokenHashCmd(jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Hash a token read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := io.ReadAll(io.LimitReader(os.Stdin, 4096))
			if err != nil {
				return err
			}
			hash, err := auth.HashAPIToken(strings.TrimSpace(string(raw)))
			if err != nil {
				return err
			}
			return writeToken(tokenOutput{Hash: hash}, *jsonOutput)
		},
	}
}

func writeToken(out tokenOutput, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(out)
	}
	if out.Token != "" {
		_ = writePlain("token: %s\n", out.Token)
	}
	_ = writePlain("hash:  %s\n", out.Hash)
	fmt.Fprintln(os.Stderr, "set the hash with: towermap config set auth.api_token_hash '<hash>'")
	return nil
}
