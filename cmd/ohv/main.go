package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kanwarsx-prog/opsHandover/internal/app"
	"github.com/kanwarsx-prog/opsHandover/internal/config"
	"github.com/kanwarsx-prog/opsHandover/internal/db"
	"github.com/kanwarsx-prog/opsHandover/internal/domain"
	"github.com/kanwarsx-prog/opsHandover/internal/engine"
	"github.com/kanwarsx-prog/opsHandover/internal/readiness"
	"github.com/kanwarsx-prog/opsHandover/internal/repo"
	"github.com/kanwarsx-prog/opsHandover/internal/server"
	"github.com/kanwarsx-prog/opsHandover/internal/templates"
)

var rootCmd = &cobra.Command{
	Use:   "ohv",
	Short: "OpsHandover CLI",
	Long: `OpsHandover tracks operational readiness for service handovers.
Core concepts:
- Workspace: your .opshandover directory holding the register database and evidence files.
- Handover: one service or system moving to a new owning team, with a go-live target date.
- Domains: readiness categories inside a handover (security, operations, training, ...).
- Checks: the individual readiness items; their statuses roll up into the handover score.
- Approvals: sign-offs required on critical checks before they may be marked Ready.
- Evidence: links and uploaded files backing a check (reports, runbooks, screenshots).
- Decision: the recorded go-live call (GO_LIVE, GO_LIVE_RISK, NOT_READY) with justification.
- Event log: the audit diary of every change, view with 'ohv log tail'.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("OPSHANDOVER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("actor-name", "", "actor display name")
	rootCmd.PersistentFlags().String("actor-role", "", "actor role (admin, audit, compliance, security, ...)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("actor-name", rootCmd.PersistentFlags().Lookup("actor-name"))
	_ = viper.BindPFlag("actor-role", rootCmd.PersistentFlags().Lookup("actor-role"))
}

func registerCommands() {
	rootCmd.AddCommand(handoverCmd())
	rootCmd.AddCommand(domainCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(approveCmd())
	rootCmd.AddCommand(evidenceCmd())
	rootCmd.AddCommand(decisionCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(analyticsCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

// --- handover ---

func handoverCmd() *cobra.Command {
	h := &cobra.Command{
		Use:   "handover",
		Short: "Manage handovers",
		Long:  "Handovers are the top-level readiness registers. Creating one seeds checks from the builtin template for its type (cloud, product, legacy, human) unless --no-template is given.",
	}
	h.AddCommand(handoverCreateCmd())
	h.AddCommand(handoverListCmd())
	h.AddCommand(handoverShowCmd())
	h.AddCommand(handoverUpdateCmd())
	h.AddCommand(handoverDeleteCmd())
	return h
}

func handoverCreateCmd() *cobra.Command {
	var opts engine.HandoverCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a handover",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Actor = cliActor()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				h, err := e.CreateHandover(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(h)
				}
				fmt.Printf("Created handover %d: %s (%s, %d checks)\n", h.ID, h.Name, h.Type, countChecks(h))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "handover name")
	cmd.Flags().StringVar(&opts.Type, "type", "", "handover type (cloud, product, legacy, human)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Lead, "lead", "", "handover lead")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "receiving owner")
	cmd.Flags().StringVar(&opts.TargetDate, "target-date", "", "go-live target date (YYYY-MM-DD)")
	cmd.Flags().Int64Var(&opts.TemplateID, "template", 0, "saved template library id")
	cmd.Flags().BoolVar(&opts.NoTemplate, "no-template", false, "start empty, without template checks")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("lead")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func handoverListCmd() *cobra.Command {
	var f repo.HandoverFilters
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List handovers",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Status = domain.Status(status)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListHandoverTrees(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Type", "Status", "Score", "Gaps", "Target", "Updated"})
				for _, h := range items {
					signals := readiness.Signals(h)
					tw.AppendRow(table.Row{
						h.ID, h.Name, h.Type, h.Status,
						fmt.Sprintf("%d%%", h.Score),
						signals.Blockers + signals.Risks,
						h.TargetDate,
						relative(h.UpdatedAt),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (Ready, At Risk, Not Ready)")
	cmd.Flags().StringVar(&f.Type, "type", "", "type filter")
	cmd.Flags().StringVar(&f.DateFrom, "from", "", "target date lower bound (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.DateTo, "to", "", "target date upper bound (YYYY-MM-DD)")
	return cmd
}

func handoverShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <handover-id>",
		Short: "Show a handover tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHandoverID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				h, err := e.GetHandover(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(h)
				}
				printHandover(h)
				return nil
			})
		},
	}
	return cmd
}

func handoverUpdateCmd() *cobra.Command {
	var name, description, lead, owner, targetDate string
	cmd := &cobra.Command{
		Use:   "update <handover-id>",
		Short: "Update handover fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHandoverID(args[0])
			if err != nil {
				return err
			}
			var u repo.HandoverFieldUpdates
			if cmd.Flags().Changed("name") {
				u.Name = &name
			}
			if cmd.Flags().Changed("description") {
				u.Description = &description
			}
			if cmd.Flags().Changed("lead") {
				u.Lead = &lead
			}
			if cmd.Flags().Changed("owner") {
				u.Owner = &owner
			}
			if cmd.Flags().Changed("target-date") {
				u.TargetDate = &targetDate
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				h, err := e.UpdateHandover(ctx, id, u, cliActor())
				if err != nil {
					return err
				}
				return printJSONOrTable(h)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "handover name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&lead, "lead", "", "handover lead")
	cmd.Flags().StringVar(&owner, "owner", "", "receiving owner")
	cmd.Flags().StringVar(&targetDate, "target-date", "", "go-live target date (YYYY-MM-DD)")
	return cmd
}

func handoverDeleteCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete <handover-id>",
		Short: "Delete a handover and everything under it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHandoverID(args[0])
			if err != nil {
				return err
			}
			if !force {
				return fmt.Errorf("deleting a handover removes its checks, approvals, and evidence files; re-run with --force")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteHandover(ctx, id, cliActor()); err != nil {
					return err
				}
				fmt.Printf("Deleted handover %d\n", id)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "confirm deletion")
	return cmd
}

// --- domain ---

func domainCmd() *cobra.Command {
	d := &cobra.Command{
		Use:   "domain",
		Short: "Manage readiness domains",
		Long:  "Domains group checks inside a handover. Domain ids accept the plain number or the prefixed key shown in listings (d4).",
	}
	d.AddCommand(domainAddCmd())
	d.AddCommand(domainUpdateCmd())
	d.AddCommand(domainMoveCmd())
	d.AddCommand(domainRemoveCmd())
	return d
}

func domainAddCmd() *cobra.Command {
	var handoverID int64
	var title, description string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a domain to a handover",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.AddDomain(ctx, handoverID, title, description, cliActor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(d)
				}
				fmt.Printf("Added domain %s: %s\n", readiness.UIKey(readiness.KindDomain, d.ID), d.Title)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&handoverID, "handover", 0, "handover id")
	cmd.Flags().StringVar(&title, "title", "", "domain title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	_ = cmd.MarkFlagRequired("handover")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func domainUpdateCmd() *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "update <domain-id>",
		Short: "Update a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindDomain, args[0])
			if err != nil {
				return err
			}
			var titleP, descP *string
			if cmd.Flags().Changed("title") {
				titleP = &title
			}
			if cmd.Flags().Changed("description") {
				descP = &description
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.UpdateDomain(ctx, id, titleP, descP, cliActor())
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "domain title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	return cmd
}

func domainMoveCmd() *cobra.Command {
	var position int
	cmd := &cobra.Command{
		Use:   "move <domain-id>",
		Short: "Reposition a domain within its handover",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindDomain, args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.MoveDomain(ctx, id, position, cliActor())
			})
		},
	}
	cmd.Flags().IntVar(&position, "position", 0, "zero-based target position")
	_ = cmd.MarkFlagRequired("position")
	return cmd
}

func domainRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <domain-id>",
		Short: "Delete a domain and its checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindDomain, args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteDomain(ctx, id, cliActor())
			})
		},
	}
	return cmd
}

// --- check ---

func checkCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "check",
		Short: "Manage readiness checks",
		Long:  "Checks are the individual readiness items. Marking one Ready is refused while its approval is pending or rejected. Check ids accept the plain number or the prefixed key (c12).",
	}
	c.AddCommand(checkAddCmd())
	c.AddCommand(checkShowCmd())
	c.AddCommand(checkUpdateCmd())
	c.AddCommand(checkMoveCmd())
	c.AddCommand(checkRemoveCmd())
	return c
}

func checkAddCmd() *cobra.Command {
	var opts engine.CheckCreateOptions
	var domainKey string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a check to a domain",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindDomain, domainKey)
			if err != nil {
				return err
			}
			opts.DomainID = id
			opts.Actor = cliActor()
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.AddCheck(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				fmt.Printf("Added check %s: %s\n", readiness.UIKey(readiness.KindCheck, c.ID), c.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&domainKey, "domain", "", "domain id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "check title")
	cmd.Flags().StringVar(&opts.Owner, "owner", "", "check owner")
	cmd.Flags().BoolVar(&opts.RequiresApproval, "requires-approval", false, "gate Ready behind an approval")
	_ = cmd.MarkFlagRequired("domain")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func checkShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <check-id>",
		Short: "Show a check with approvals and evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindCheck, args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Repo.GetCheck(ctx, id)
				if err != nil {
					return err
				}
				if c.Approvals, err = e.Repo.ListApprovals(ctx, id); err != nil {
					return err
				}
				if c.Evidence, err = e.Repo.ListEvidence(ctx, id); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(c)
				}
				printCheck(c)
				return nil
			})
		},
	}
	return cmd
}

func checkUpdateCmd() *cobra.Command {
	var title, owner, status, blockerReason string
	var requiresApproval bool
	cmd := &cobra.Command{
		Use:   "update <check-id>",
		Short: "Update a check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindCheck, args[0])
			if err != nil {
				return err
			}
			opts := engine.CheckUpdateOptions{ID: id, Actor: cliActor()}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("owner") {
				opts.Owner = &owner
			}
			if cmd.Flags().Changed("status") {
				s := domain.Status(status)
				opts.Status = &s
			}
			if cmd.Flags().Changed("blocker") {
				opts.BlockerReason = &blockerReason
			}
			if cmd.Flags().Changed("requires-approval") {
				opts.RequiresApproval = &requiresApproval
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpdateCheck(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(c)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "check title")
	cmd.Flags().StringVar(&owner, "owner", "", "check owner")
	cmd.Flags().StringVar(&status, "status", "", "status (Ready, At Risk, Not Ready)")
	cmd.Flags().StringVar(&blockerReason, "blocker", "", "blocker reason (empty string clears it)")
	cmd.Flags().BoolVar(&requiresApproval, "requires-approval", false, "toggle the approval gate")
	return cmd
}

func checkMoveCmd() *cobra.Command {
	var position int
	cmd := &cobra.Command{
		Use:   "move <check-id>",
		Short: "Reposition a check within its domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindCheck, args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.MoveCheck(ctx, id, position, cliActor())
			})
		},
	}
	cmd.Flags().IntVar(&position, "position", 0, "zero-based target position")
	_ = cmd.MarkFlagRequired("position")
	return cmd
}

func checkRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <check-id>",
		Short: "Delete a check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindCheck, args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteCheck(ctx, id, cliActor())
			})
		},
	}
	return cmd
}

// --- approvals ---

func approveCmd() *cobra.Command {
	var decision, comments string
	cmd := &cobra.Command{
		Use:   "approve <check-id>",
		Short: "Record an approval decision on a check",
		Long:  "Only elevated roles (per ohv.yml) or the check owner may sign off. The latest decision wins; rejecting a Ready check demotes it to At Risk.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindCheck, args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.RecordApproval(ctx, engine.ApprovalOptions{
					CheckID:  id,
					Decision: decision,
					Comments: comments,
					Actor:    cliActor(),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(a)
				}
				fmt.Printf("Recorded %s by %s on check %s\n", a.Decision, a.Approver, readiness.UIKey(readiness.KindCheck, id))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "approved", "approved or rejected")
	cmd.Flags().StringVar(&comments, "comments", "", "review comments")
	_ = cmd.MarkFlagRequired("comments")
	return cmd
}

// --- evidence ---

func evidenceCmd() *cobra.Command {
	ev := &cobra.Command{
		Use:   "evidence",
		Short: "Manage check evidence",
		Long:  "Evidence backs a check with links or uploaded files. Uploaded images become screenshot evidence with a thumbnail, other files become documents.",
	}
	ev.AddCommand(evidenceAddCmd())
	ev.AddCommand(evidenceUploadCmd())
	ev.AddCommand(evidenceListCmd())
	ev.AddCommand(evidenceRemoveCmd())
	return ev
}

func evidenceAddCmd() *cobra.Command {
	var checkKey, title, evidenceURL, evidenceType, description string
	var tags []string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Attach link evidence to a check",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindCheck, checkKey)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.AddEvidence(ctx, engine.EvidenceOptions{
					CheckID:     id,
					Title:       title,
					URL:         evidenceURL,
					Type:        evidenceType,
					Description: description,
					Tags:        tags,
					Actor:       cliActor(),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().StringVar(&checkKey, "check", "", "check id")
	cmd.Flags().StringVar(&title, "title", "", "evidence title")
	cmd.Flags().StringVar(&evidenceURL, "url", "", "evidence URL")
	cmd.Flags().StringVar(&evidenceType, "type", "", "link, document, screenshot, or video")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringArrayVar(&tags, "tag", []string{}, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("check")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func evidenceUploadCmd() *cobra.Command {
	var checkKey, title, description string
	var tags []string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file as evidence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindCheck, checkKey)
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			contentType := mime.TypeByExtension(filepath.Ext(args[0]))
			if contentType == "" {
				contentType = http.DetectContentType(content)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.AddEvidenceFile(ctx, engine.FileEvidenceOptions{
					CheckID:     id,
					Filename:    filepath.Base(args[0]),
					Content:     content,
					ContentType: contentType,
					Title:       title,
					Description: description,
					Tags:        tags,
					Actor:       cliActor(),
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ev)
				}
				fmt.Printf("Uploaded %s (%s, %s) as evidence %s\n",
					ev.Title, ev.Type, humanize.IBytes(uint64(ev.FileSize)),
					readiness.UIKey(readiness.KindEvidence, ev.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&checkKey, "check", "", "check id")
	cmd.Flags().StringVar(&title, "title", "", "evidence title (defaults to filename)")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringArrayVar(&tags, "tag", []string{}, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("check")
	return cmd
}

func evidenceListCmd() *cobra.Command {
	var checkKey string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List evidence on a check",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindCheck, checkKey)
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListEvidence(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Type", "URL", "Added"})
				for _, ev := range items {
					tw.AppendRow(table.Row{
						readiness.UIKey(readiness.KindEvidence, ev.ID),
						ev.Title, ev.Type, ev.URL, relative(ev.CreatedAt),
					})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&checkKey, "check", "", "check id")
	_ = cmd.MarkFlagRequired("check")
	return cmd
}

func evidenceRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <evidence-id>",
		Short: "Delete evidence (and its stored file)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID(readiness.KindEvidence, args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RemoveEvidence(ctx, id, cliActor())
			})
		},
	}
	return cmd
}

// --- decision ---

func decisionCmd() *cobra.Command {
	dec := &cobra.Command{
		Use:   "decision",
		Short: "Go-live decisions",
		Long:  "The decision gate: GO_LIVE needs zero blockers, GO_LIVE_RISK needs a justification and an explicit risk acknowledgement, NOT_READY needs a justification.",
	}
	dec.AddCommand(decisionOptionsCmd())
	dec.AddCommand(decisionRecordCmd())
	dec.AddCommand(decisionListCmd())
	return dec
}

func decisionOptionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options <handover-id>",
		Short: "Show which decisions are currently selectable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHandoverID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				opts, err := e.DecisionOptions(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(opts)
				}
				printDecisionOptions(opts)
				return nil
			})
		},
	}
	return cmd
}

func decisionRecordCmd() *cobra.Command {
	var decision, justification string
	var ack bool
	cmd := &cobra.Command{
		Use:   "record <handover-id>",
		Short: "Record a go-live decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHandoverID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rec, err := e.RecordDecision(ctx, id, readiness.DecisionInput{
					Decision:         readiness.GoLiveDecision(decision),
					Justification:    justification,
					RiskAcknowledged: ack,
				}, cliActor())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rec)
				}
				fmt.Printf("Recorded %s for handover %d by %s\n", rec.Decision, id, rec.DecidedBy)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "", "GO_LIVE, GO_LIVE_RISK, or NOT_READY")
	cmd.Flags().StringVar(&justification, "justification", "", "why this call was made")
	cmd.Flags().BoolVar(&ack, "ack-risk", false, "acknowledge open risks (required for GO_LIVE_RISK)")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func decisionListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <handover-id>",
		Short: "Decision history, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHandoverID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListDecisions(ctx, id)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Decision", "By", "When", "Justification"})
				for _, rec := range items {
					tw.AppendRow(table.Row{rec.Decision, rec.DecidedBy, relative(rec.CreatedAt), rec.Justification})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

// --- status ---

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <handover-id>",
		Short: "Readiness rollup for a handover",
		Long:  "The scoreboard: derived status and score, blocker and risk counts, and which go-live decisions are currently on the table.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseHandoverID(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				h, err := e.GetHandover(ctx, id)
				if err != nil {
					return err
				}
				signals := readiness.Signals(h)
				risk := readiness.SummarizeRisk(signals.Blockers+signals.Risks, h.Status)
				opts := readiness.DecisionOptions(h)
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"id":               h.ID,
						"name":             h.Name,
						"status":           h.Status,
						"score":            h.Score,
						"signals":          signals,
						"risk":             risk,
						"decision_options": opts,
					})
				}
				fmt.Printf("%s: %s (%d%%)\n", h.Name, h.Status, h.Score)
				fmt.Printf("Checks: %d ready, %d at risk, %d not ready", signals.Ready, signals.Risks, signals.Blockers)
				if pending := countPendingApprovals(h); pending > 0 {
					fmt.Printf(", %d approvals pending", pending)
				}
				fmt.Println()
				fmt.Printf("Risk: %s\n", risk.Message)
				printDecisionOptions(opts)
				return nil
			})
		},
	}
	return cmd
}

// --- analytics ---

func analyticsCmd() *cobra.Command {
	var status, handoverType, csvPath string
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Portfolio readiness metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			var f repo.HandoverFilters
			f.Status = domain.Status(status)
			f.Type = handoverType
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.Analytics(ctx, f)
				if err != nil {
					return err
				}
				if csvPath != "" {
					if err := writeAnalyticsCSV(csvPath, report); err != nil {
						return err
					}
					fmt.Printf("Wrote %s\n", csvPath)
					return nil
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				s := report.Summary
				fmt.Printf("Handovers: %d (avg score %d%%, %.1f%% ready)\n", s.TotalHandovers, s.AverageScore, s.ReadyPercent)
				fmt.Printf("Checks: %d total, %d ready, %d at risk, %d not ready\n",
					s.TotalChecks,
					s.ChecksByStatus[domain.StatusReady],
					s.ChecksByStatus[domain.StatusAtRisk],
					s.ChecksByStatus[domain.StatusNotReady])
				fmt.Println("Score distribution:")
				for _, b := range report.Histogram {
					fmt.Printf("  %7s: %d\n", b.Range, b.Count)
				}
				if len(report.Trend) > 0 {
					fmt.Println("Created by month:")
					for _, p := range report.Trend {
						fmt.Printf("  %s: %d (%d ready)\n", p.Month, p.Total, p.Ready)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	cmd.Flags().StringVar(&handoverType, "type", "", "type filter")
	cmd.Flags().StringVar(&csvPath, "csv", "", "write metrics to a CSV file instead of printing")
	return cmd
}

func writeAnalyticsCSV(path string, report engine.AnalyticsReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	cw := csv.NewWriter(f)
	records := [][]string{
		{"Metric", "Value"},
		{"Total Handovers", strconv.Itoa(report.Summary.TotalHandovers)},
		{"Average Score", strconv.Itoa(report.Summary.AverageScore)},
		{"Ready Percent", strconv.FormatFloat(report.Summary.ReadyPercent, 'f', 1, 64)},
		{"Total Checks", strconv.Itoa(report.Summary.TotalChecks)},
	}
	for _, status := range []domain.Status{domain.StatusReady, domain.StatusAtRisk, domain.StatusNotReady} {
		records = append(records, []string{"Handovers " + string(status), strconv.Itoa(report.Summary.ByStatus[status])})
		records = append(records, []string{"Checks " + string(status), strconv.Itoa(report.Summary.ChecksByStatus[status])})
	}
	for _, b := range report.Histogram {
		records = append(records, []string{"Score " + b.Range, strconv.Itoa(b.Count)})
	}
	for _, p := range report.Trend {
		records = append(records, []string{"Created " + p.Month, strconv.Itoa(p.Total)})
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// --- templates ---

func templateCmd() *cobra.Command {
	t := &cobra.Command{
		Use:   "template",
		Short: "Browse and save check templates",
	}
	t.AddCommand(templateListCmd())
	t.AddCommand(templateShowCmd())
	t.AddCommand(templateSaveCmd())
	return t
}

type templateFileCheck struct {
	Title            string `yaml:"title"`
	Owner            string `yaml:"owner"`
	RequiresApproval bool   `yaml:"requires_approval"`
}

type templateFileDomain struct {
	Title  string              `yaml:"title"`
	Checks []templateFileCheck `yaml:"checks"`
}

func templateSaveCmd() *cobra.Command {
	var name, description, category string
	cmd := &cobra.Command{
		Use:   "save <file>",
		Short: "Save a template library from a YAML file",
		Long:  "The file holds a list of domains, each with a title and checks (title, optional owner and requires_approval), in the same shape 'template show --json' prints.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var parsed []templateFileDomain
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if len(parsed) == 0 {
				return fmt.Errorf("%s contains no domains", args[0])
			}
			doms := make([]domain.TemplateDomain, 0, len(parsed))
			for _, d := range parsed {
				td := domain.TemplateDomain{Title: d.Title}
				for _, c := range d.Checks {
					td.Checks = append(td.Checks, domain.TemplateCheck{
						Title:            c.Title,
						Owner:            c.Owner,
						RequiresApproval: c.RequiresApproval,
					})
				}
				doms = append(doms, td)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				lib := domain.TemplateLibrary{
					Name:        name,
					Description: description,
					Category:    category,
					CreatedBy:   cliActor().ID,
					CreatedAt:   time.Now().UTC().Format(time.RFC3339),
					Domains:     doms,
				}
				id, err := e.Repo.InsertTemplateLibrary(ctx, lib)
				if err != nil {
					return err
				}
				lib.ID = id
				if viper.GetBool("json") {
					return printJSON(lib)
				}
				s := templates.Summarize(doms)
				fmt.Printf("Saved template %d: %s (%d domains, %d checks)\n", id, name, s.DomainCount, s.CheckCount)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "library name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&category, "category", "user", "system, organization, or user")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func templateListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List builtin types and saved libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				libs, err := e.Repo.ListTemplateLibraries(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{"builtin": templates.Types(), "libraries": libs})
				}
				fmt.Println("Builtin types:")
				for _, typ := range templates.Types() {
					s := templates.Summarize(templates.Builtin(typ))
					fmt.Printf("  %-8s %d domains, %d checks\n", typ, s.DomainCount, s.CheckCount)
				}
				if len(libs) > 0 {
					fmt.Println("Saved libraries:")
					for _, lib := range libs {
						s := templates.Summarize(lib.Domains)
						fmt.Printf("  %d  %s (%s): %d domains, %d checks\n", lib.ID, lib.Name, lib.Category, s.DomainCount, s.CheckCount)
					}
				}
				return nil
			})
		},
	}
	return cmd
}

func templateShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <type-or-id>",
		Short: "Show a template's domains and checks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var doms []domain.TemplateDomain
				if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
					lib, err := e.Repo.GetTemplateLibrary(ctx, id)
					if err != nil {
						return err
					}
					doms = lib.Domains
				} else {
					doms = templates.Builtin(args[0])
				}
				if viper.GetBool("json") {
					return printJSON(doms)
				}
				for _, d := range doms {
					fmt.Println(d.Title)
					for _, c := range d.Checks {
						marker := " "
						if c.RequiresApproval {
							marker = "*"
						}
						fmt.Printf("  %s %s\n", marker, c.Title)
					}
				}
				fmt.Println("(* requires approval)")
				return nil
			})
		},
	}
	return cmd
}

// --- log ---

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The audit diary: who changed what and when, across every handover in the register.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var handoverID int64
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, handoverID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"When", "Type", "Entity", "Actor"})
				for _, evt := range events {
					entity := evt.EntityKind
					if evt.EntityID != "" {
						entity += " " + evt.EntityID
					}
					tw.AppendRow(table.Row{relative(evt.TS), evt.Type, entity, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().Int64Var(&handoverID, "handover", 0, "filter by handover id")
	return cmd
}

// --- config ---

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Workspace config",
		Long:  "ohv.yml holds the register defaults: default handover type, elevated approver roles, upload limits, and webhooks.",
	}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default ohv.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(projectID)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "handover-register", "project identifier")
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate ohv.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err == nil {
				err = cfg.Validate()
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

// --- api keys ---

func apikeyCmd() *cobra.Command {
	k := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys for the HTTP server",
	}
	k.AddCommand(apikeyCreateCmd())
	k.AddCommand(apikeyListCmd())
	k.AddCommand(apikeyRemoveCmd())
	return k
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = viper.GetString("actor-id")
			}
			secret := "ohv_" + strings.ReplaceAll(uuid.NewString(), "-", "")
			key := domain.APIKey{
				ID:      uuid.NewString(),
				ActorID: actorID,
				Name:    name,
				KeyHash: repo.HashAPIKey(secret),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "actor_id": actorID, "key": secret})
				}
				fmt.Printf("API key %s for %s\n", key.ID, actorID)
				fmt.Printf("Secret (shown once): %s\n", secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor the key authenticates as (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				keys, err := e.Repo.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Actor", "Name", "Created"})
				for _, key := range keys {
					tw.AppendRow(table.Row{key.ID, key.ActorID, key.Name, relative(key.CreatedAt)})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "filter by actor")
	return cmd
}

func apikeyRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rm <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyActor bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := app.Open(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			defer rt.Close()
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("OPSHANDOVER_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacyActor,
			}
			if authCfg.JWTSecret == "" && !allowLegacyActor {
				return fmt.Errorf("OPSHANDOVER_JWT_SECRET is required for bearer auth (or pass --allow-legacy-actor for local use)")
			}
			handler, err := server.New(server.Config{
				Engine:   rt.Engine,
				BasePath: basePath,
				FilesDir: db.FilesDir(rt.Workspace),
				Auth:     authCfg,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving OpsHandover API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacyActor, "allow-legacy-actor", false, "accept unauthenticated X-Actor-Id headers (local use only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	rt, err := app.Open(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(ctx, rt.Engine)
}

func cliActor() domain.Actor {
	return domain.Actor{
		ID:          viper.GetString("actor-id"),
		DisplayName: viper.GetString("actor-name"),
		Role:        viper.GetString("actor-role"),
	}
}

func parseHandoverID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid handover id %q", raw)
	}
	return id, nil
}

// parseEntityID accepts both plain numeric ids and the prefixed keys shown in
// listings (c12, d4, e7).
func parseEntityID(kind readiness.EntityKind, raw string) (int64, error) {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
		return id, nil
	}
	k, id, err := readiness.ParseUIKey(raw)
	if err != nil {
		return 0, err
	}
	if k != kind {
		return 0, fmt.Errorf("%q is not a %s id", raw, string(rune(kind)))
	}
	return id, nil
}

func printHandover(h domain.Handover) {
	fmt.Printf("%s (%s) - %s %d%%\n", h.Name, h.Type, h.Status, h.Score)
	if h.Lead != "" || h.Owner != "" {
		fmt.Printf("Lead: %s  Owner: %s", h.Lead, h.Owner)
		if h.TargetDate != "" {
			fmt.Printf("  Target: %s", h.TargetDate)
		}
		fmt.Println()
	}
	for i, d := range h.Domains {
		connector := "├── "
		childPrefix := "│   "
		if i == len(h.Domains)-1 {
			connector = "└── "
			childPrefix = "    "
		}
		fmt.Printf("%s%s [%s]\n", connector, d.Title, readiness.UIKey(readiness.KindDomain, d.ID))
		for j, c := range d.Checks {
			cc := "├── "
			if j == len(d.Checks)-1 {
				cc = "└── "
			}
			fmt.Printf("%s%s%s %s [%s]%s\n", childPrefix, cc, statusIcon(c.Status), c.Title,
				readiness.UIKey(readiness.KindCheck, c.ID), checkAnnotations(c))
		}
	}
}

func printCheck(c domain.Check) {
	fmt.Printf("%s %s [%s]%s\n", statusIcon(c.Status), c.Title,
		readiness.UIKey(readiness.KindCheck, c.ID), checkAnnotations(c))
	if c.Owner != "" {
		fmt.Printf("Owner: %s\n", c.Owner)
	}
	if c.BlockerReason != "" {
		fmt.Printf("Blocker: %s\n", c.BlockerReason)
	}
	if len(c.Approvals) > 0 {
		fmt.Println("Approvals:")
		for _, a := range c.Approvals {
			fmt.Printf("  %s by %s (%s): %s\n", a.Decision, a.Approver, relative(a.CreatedAt), a.Comments)
		}
	}
	if len(c.Evidence) > 0 {
		fmt.Println("Evidence:")
		for _, ev := range c.Evidence {
			ref := ev.URL
			if ref == "" {
				ref = ev.FilePath
			}
			fmt.Printf("  [%s] %s (%s) %s\n", readiness.UIKey(readiness.KindEvidence, ev.ID), ev.Title, ev.Type, ref)
		}
	}
}

func printDecisionOptions(opts []readiness.DecisionOption) {
	fmt.Println("Decision options:")
	for _, opt := range opts {
		marker := "x"
		note := ""
		if opt.Selectable {
			marker = " "
		} else if opt.Reason != "" {
			note = " (" + opt.Reason + ")"
		}
		fmt.Printf("  [%s] %s%s\n", marker, opt.Decision, note)
	}
}

func statusIcon(s domain.Status) string {
	switch s {
	case domain.StatusReady:
		return "✓"
	case domain.StatusAtRisk:
		return "!"
	default:
		return "✗"
	}
}

func checkAnnotations(c domain.Check) string {
	var notes []string
	if c.RequiresApproval {
		notes = append(notes, "approval: "+approvalLabel(c.ApprovalStatus))
	}
	if c.BlockerReason != "" {
		notes = append(notes, "blocked: "+c.BlockerReason)
	}
	if len(notes) == 0 {
		return ""
	}
	return " (" + strings.Join(notes, "; ") + ")"
}

func approvalLabel(s domain.ApprovalState) string {
	if s == domain.ApprovalNone {
		return "none"
	}
	return string(s)
}

func countPendingApprovals(h domain.Handover) int {
	n := 0
	for _, d := range h.Domains {
		for _, c := range d.Checks {
			if c.RequiresApproval && c.ApprovalStatus == domain.ApprovalPending {
				n++
			}
		}
	}
	return n
}

func countChecks(h domain.Handover) int {
	n := 0
	for _, d := range h.Domains {
		n += len(d.Checks)
	}
	return n
}

func relative(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return humanize.Time(t)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
