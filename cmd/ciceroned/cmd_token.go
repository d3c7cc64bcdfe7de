// Copyright © 2026 Noesis Labs - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noesis-labs/cicerone/internal/server"
)

var (
	tokenTenant string
	tokenAdmin  bool
	tokenTTL    time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the chat API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if config.Server.JWTSecret == "" {
			return fmt.Errorf("server.jwt_secret is required")
		}
		if tokenTenant == "" && !tokenAdmin {
			return fmt.Errorf("pass --tenant or --admin")
		}

		var scopes []string
		if tokenAdmin {
			scopes = append(scopes, "admin")
		}
		tok, err := server.SignToken([]byte(config.Server.JWTSecret), "cli", tokenTenant, tokenTTL, scopes...)
		if err != nil {
			return err
		}
		fmt.Println(tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenTenant, "tenant", "", "tenant the token is bound to")
	tokenCmd.Flags().BoolVar(&tokenAdmin, "admin", false, "grant the admin scope")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
