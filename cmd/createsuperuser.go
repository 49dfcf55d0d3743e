/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/recipe-app/apiserver/config"
	"github.com/recipe-app/apiserver/internal/db"
	"github.com/recipe-app/apiserver/internal/services"
	"github.com/recipe-app/apiserver/internal/store"
	"github.com/spf13/cobra"
)

var (
	superuserEmail    string
	superuserPassword string
)

// createSuperuserCmd creates an account with staff and superuser flags.
var createSuperuserCmd = &cobra.Command{
	Use:   "createsuperuser",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		conn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer conn.Close()

		users := services.NewUserService(store.NewUserRepository(conn), cfg.Auth.MinPasswordLen)
		user, err := users.CreateSuperuser(cmd.Context(), superuserEmail, superuserPassword)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created superuser %s (id %d)\n", user.Email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createSuperuserCmd)

	createSuperuserCmd.Flags().StringVar(&superuserEmail, "email", "", "email address of the new account")
	createSuperuserCmd.Flags().StringVar(&superuserPassword, "password", "", "password of the new account")
	_ = createSuperuserCmd.MarkFlagRequired("email")
	_ = createSuperuserCmd.MarkFlagRequired("password")
}
