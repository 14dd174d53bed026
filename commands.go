package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/lotas/sidestack/internal/config"
	"github.com/lotas/sidestack/internal/export"
	"github.com/lotas/sidestack/internal/firefox"
	"github.com/lotas/sidestack/internal/render"
	"github.com/lotas/sidestack/internal/snapshot"
	"github.com/lotas/sidestack/internal/state"
	"github.com/lotas/sidestack/internal/storage"
)

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		asJSON  bool
		search  string
		outFile string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print the window's tabs as markdown or JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := openHost(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer s.close()

			ctrl, err := newController(cfg, s.host, nil, nil)
			if err != nil {
				return err
			}
			if err := ctrl.Start(ctx); err != nil {
				return err
			}
			ctrl.Search(search)

			meta := export.Meta{WindowID: ctrl.WindowID(), Search: ctrl.UI().Search, ExportedAt: time.Now()}
			var output string
			if asJSON {
				output, err = export.JSON(ctrl.Items(), meta)
				if err != nil {
					return fmt.Errorf("generate JSON: %w", err)
				}
			} else {
				output = export.Markdown(ctrl.Items(), meta)
			}

			if outFile != "" {
				return os.WriteFile(outFile, []byte(output), 0644)
			}
			fmt.Fprint(cmd.OutOrStdout(), output)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "export as JSON instead of markdown")
	cmd.Flags().StringVar(&search, "search", "", "only export tabs matching this search")
	cmd.Flags().StringVar(&outFile, "out", "", "output file path (default: stdout)")
	return cmd
}

func newSavedCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved tab groups",
	}

	// withDB runs fn with an open database.
	withDB := func(cmd *cobra.Command, fn func(cfg config.Config, db *sql.DB) error) error {
		cfg, err := loadConfig(cmd, g)
		if err != nil {
			return err
		}
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(cfg, db)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(_ config.Config, db *sql.DB) error {
				groups, err := storage.ListSavedGroups(db)
				if err != nil {
					return fmt.Errorf("list saved groups: %w", err)
				}
				out := cmd.OutOrStdout()
				if len(groups) == 0 {
					fmt.Fprintln(out, "No saved groups found.")
					return nil
				}
				fmt.Fprintf(out, "%-8s %5s  %-8s %-24s  %s\n", "ID", "TABS", "COLOR", "TITLE", "CREATED")
				for _, sg := range groups {
					fmt.Fprintf(out, "%-8s %5d  %-8s %-24s  %s\n",
						shortID(sg.ID),
						sg.TabCount,
						sg.Color,
						render.GroupTitle(sg.Title),
						sg.CreatedAt.Local().Format("2006-01-02 15:04"),
					)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "save <group-id>",
		Short: "Save a live tab group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			groupID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid group id: %s", args[0])
			}
			return withDB(cmd, func(cfg config.Config, db *sql.DB) error {
				return withHost(cmd.Context(), cfg, func(s *session) error {
					id, created, err := snapshot.SaveGroup(cmd.Context(), s.host, db, groupID)
					if err != nil {
						return fmt.Errorf("save group: %w", err)
					}
					if created {
						fmt.Fprintf(cmd.OutOrStdout(), "Saved group as %s\n", shortID(id))
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "Group already saved as %s\n", shortID(id))
					}
					return nil
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(_ config.Config, db *sql.DB) error {
				if err := storage.DeleteSavedGroup(db, args[0]); err != nil {
					return fmt.Errorf("delete saved group: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <id>",
		Short: "Reopen a saved group in the window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(cfg config.Config, db *sql.DB) error {
				return withHost(cmd.Context(), cfg, func(s *session) error {
					ctx := cmd.Context()
					wid := cfg.Window
					if wid == 0 {
						var err error
						if wid, err = s.host.CurrentWindow(ctx); err != nil {
							return fmt.Errorf("current window: %w", err)
						}
					}
					n, err := snapshot.Restore(ctx, s.host, db, wid, args[0])
					if err != nil {
						return fmt.Errorf("restore: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Restored %d tabs\n", n)
					return nil
				})
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "diff <id>",
		Short: "Compare a saved group with the open tabs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd, func(cfg config.Config, db *sql.DB) error {
				saved, err := storage.GetSavedGroup(db, args[0])
				if err != nil {
					return fmt.Errorf("load saved group: %w", err)
				}
				return withHost(cmd.Context(), cfg, func(s *session) error {
					ctrl, err := newController(cfg, s.host, nil, nil)
					if err != nil {
						return err
					}
					if err := ctrl.Start(cmd.Context()); err != nil {
						return err
					}
					fmt.Fprint(cmd.OutOrStdout(), snapshot.FormatDiff(snapshot.Diff(saved, ctrl.Tabs())))
					return nil
				})
			})
		},
	})

	return cmd
}

func newSettingsCmd(g *globalFlags) *cobra.Command {
	var (
		theme   string
		compact bool
		dedupe  bool
	)
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the sidebar settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			st := state.NewManager(storage.NewKV(db))
			s, err := st.Settings(ctx)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			changed := false
			if flags.Changed("theme") {
				switch theme {
				case render.ModeSystem, render.ModeLight, render.ModeDark:
				default:
					return fmt.Errorf("invalid theme %q (want system, light or dark)", theme)
				}
				s.ThemeMode = theme
				changed = true
			}
			if flags.Changed("compact") {
				s.CompactMode = compact
				changed = true
			}
			if flags.Changed("dedupe") {
				s.DuplicateDetection = dedupe
				changed = true
			}
			if changed {
				if err := st.SaveSettings(ctx, s); err != nil {
					return err
				}
				if _, err := st.SetThemeMode(ctx, s.ThemeMode); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "theme:               %s\n", s.ThemeMode)
			fmt.Fprintf(out, "compact mode:        %t\n", s.CompactMode)
			fmt.Fprintf(out, "duplicate detection: %t\n", s.DuplicateDetection)
			return nil
		},
	}
	cmd.Flags().StringVar(&theme, "theme", "", "theme mode: system, light or dark")
	cmd.Flags().BoolVar(&compact, "compact", false, "compact rows")
	cmd.Flags().BoolVar(&dedupe, "dedupe", false, "mark duplicate tabs")
	return cmd
}

func newConfigCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the config file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.WriteDefault(g.configPath, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "host:            %s\n", cfg.Host)
			fmt.Fprintf(out, "port:            %d\n", cfg.Port)
			fmt.Fprintf(out, "cdp_url:         %s\n", cfg.CDPURL)
			fmt.Fprintf(out, "firefox_profile: %s\n", cfg.FirefoxProfile)
			fmt.Fprintf(out, "db_path:         %s\n", cfg.DBPath)
			fmt.Fprintf(out, "log_dir:         %s\n", cfg.LogDir)
			fmt.Fprintf(out, "request_timeout: %s\n", cfg.RequestTimeout)
			fmt.Fprintf(out, "window:          %d\n", cfg.Window)
			fmt.Fprintf(out, "group_ignore:    %v\n", cfg.GroupIgnore)
			return nil
		},
	})
	return cmd
}

func newProfilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profiles",
		Short: "List Firefox profiles with a session file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, err := firefox.DiscoverProfiles()
			if err != nil {
				return fmt.Errorf("discover Firefox profiles: %w", err)
			}
			if len(profiles) == 0 {
				return fmt.Errorf("no Firefox profiles found")
			}
			for _, p := range profiles {
				suffix := ""
				if p.IsDefault {
					suffix = " [default]"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)%s\n", p.Name, p.Path, suffix)
			}
			return nil
		},
	}
}

// withHost runs fn against the configured browser.
func withHost(ctx context.Context, cfg config.Config, fn func(s *session) error) error {
	s, err := openHost(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer s.close()
	return fn(s)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
