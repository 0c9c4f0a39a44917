package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nhle/habitboard/internal/api"
	"github.com/nhle/habitboard/internal/model"
	"github.com/nhle/habitboard/internal/ui/authform"
)

// promptCredentials asks for whatever the flags left out.
func promptCredentials(mode authform.Mode, creds *model.Credentials) error {
	var fields []huh.Field
	if creds.Username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(&creds.Username))
	}
	if creds.Password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Validate(func(s string) error { return authform.ValidatePassword(mode, s) }).
			Value(&creds.Password))
	}
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

func sessionCmd(use, short string, mode authform.Mode) *cobra.Command {
	var creds model.Credentials
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.Password == "" {
				creds.Password = os.Getenv("HABITBOARD_PASSWORD")
			}
			if err := promptCredentials(mode, &creds); err != nil {
				return err
			}

			e, err := openEnv(configPath)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := context.Background()
			if mode == authform.ModeRegister {
				err = e.deps.Auth.Register(ctx, creds)
			} else {
				err = e.deps.Auth.Login(ctx, creds)
			}
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s.\n", creds.Username)
			return nil
		},
	}
	cmd.Flags().StringVarP(&creds.Username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&creds.Password, "password", "p", "", "Password (or HABITBOARD_PASSWORD)")
	return cmd
}

func loginCmd() *cobra.Command {
	return sessionCmd("login", "Sign in", authform.ModeLogin)
}

func registerCmd() *cobra.Command {
	return sessionCmd("register", "Create an account and sign in", authform.ModeRegister)
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(configPath)
			if err != nil {
				return err
			}
			defer e.Close()
			if err := e.deps.Auth.Logout(context.Background()); err != nil {
				return fmt.Errorf("signing out: %w", err)
			}
			fmt.Println("Signed out.")
			return nil
		},
	}
}

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(func(ctx context.Context, e *env) error {
				if _, err := e.deps.Queries.Tasks(ctx); err == nil {
					e.deps.Profile.RefreshStats(ctx)
				}
				p, err := e.deps.Profile.Fetch(ctx)
				if p == nil {
					return fmt.Errorf("loading profile: %w", err)
				}
				if err != nil {
					fmt.Fprintln(os.Stderr, "Showing the saved profile:", err)
				}
				printProfile(p)
				return nil
			})
		},
	}
	cmd.AddCommand(profileSetCmd())
	return cmd
}

func profileSetCmd() *cobra.Command {
	var email, bio string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change your email or bio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req api.UpdateProfileRequest
			if cmd.Flags().Changed("email") {
				req.Email = &email
			}
			if cmd.Flags().Changed("bio") {
				req.Bio = &bio
			}
			if req.Empty() {
				return fmt.Errorf("nothing to change: pass --email or --bio")
			}
			return withSession(func(ctx context.Context, e *env) error {
				p, err := e.deps.Profile.Update(ctx, req)
				if err != nil {
					return fmt.Errorf("updating profile: %w", err)
				}
				printProfile(p)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "New email address")
	cmd.Flags().StringVar(&bio, "bio", "", "New bio")
	return cmd
}

func printProfile(p *model.Profile) {
	fmt.Println(p.Username)
	if p.Email != "" {
		fmt.Println("Email: ", p.Email)
	}
	if p.Bio != "" {
		fmt.Println("Bio:   ", p.Bio)
	}
	if t := p.CreatedTime(); !t.IsZero() {
		fmt.Printf("Joined: %s (%s)\n", t.Format("January 2, 2006"), humanize.Time(t))
	}
	if p.Stats != nil {
		fmt.Printf("Tasks:  %s total, %s done, %s pending\n",
			humanize.Comma(int64(p.Stats.TotalTasks)),
			humanize.Comma(int64(p.Stats.CompletedTasks)),
			humanize.Comma(int64(p.Stats.PendingTasks)))
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file path",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(configPath)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadConfig(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("api.base_url:             %s\n", cfg.API.BaseURL)
			fmt.Printf("api.timeout:              %s\n", cfg.Timeout())
			fmt.Printf("refresh.interval:         %s\n", cfg.RefreshInterval())
			fmt.Printf("display.streak_fallback:  %s\n", cfg.Display.StreakFallback)
			fmt.Printf("storage.db_path:          %s\n", cfg.Storage.DBPath)
			for k, d := range cfg.StaleTimes() {
				fmt.Printf("cache.stale[%s]: %s\n", k, d)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if err := model.SaveConfig(configPath, cfg); err != nil {
				return err
			}
			fmt.Println("Wrote", configPath)
			return nil
		},
	})
	return cmd
}
