package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"govsure/internal/api"
	"govsure/internal/assist"
	"govsure/internal/briefs"
	"govsure/internal/calendar"
	"govsure/internal/config"
	"govsure/internal/db"
	"govsure/internal/domain"
	"govsure/internal/migrate"
	"govsure/internal/repo"
	"govsure/internal/store"
	"govsure/internal/stub"
)

var rootCmd = &cobra.Command{
	Use:   "govsure",
	Short: "GovSure CLI",
	Long: `GovSure tracks government-contracting pursuits from the terminal.
Core concepts:
- Pipeline: the pursuits you are chasing; each item carries two independent
  lifecycles, the proposal document status (draft -> in_progress -> review ->
  submitted) and the business stage (prospecting through won/lost).
- Active proposals: pipeline items whose document is still in flight
  (draft, in_progress, review).
- Briefs: AI-generated opportunity analyses, fetched read-through with a
  local cache and a placeholder fallback so a lookup never fails.
- Urgency: due dates and priority map to a display color (red, orange,
  yellow, gray) and a humanized countdown.
- Calendar: export a deadline as an ICS file or a platform deeplink.
- Stub server: 'govsure serve-stub' runs the API locally against sqlite for
  offline work.`,
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
	viper.SetEnvPrefix("GOVSURE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("base-url", "", "API base URL (overrides config)")
	rootCmd.PersistentFlags().String("token", "", "bearer token (overrides config and env)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("base-url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}

func registerCommands() {
	rootCmd.AddCommand(pipelineCmd())
	rootCmd.AddCommand(briefCmd())
	rootCmd.AddCommand(proposalCmd())
	rootCmd.AddCommand(opportunityCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(assistCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveStubCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(authCmd())
}

func pipelineCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pipeline", Short: "Manage the pursuit pipeline"}
	cmd.AddCommand(pipelineAddCmd())
	cmd.AddCommand(pipelineListCmd())
	cmd.AddCommand(pipelineActiveCmd())
	cmd.AddCommand(pipelineUpdateCmd())
	cmd.AddCommand(pipelineDeleteCmd())
	cmd.AddCommand(pipelineShareCmd())
	cmd.AddCommand(pipelineStatsCmd())
	return cmd
}

func pipelineAddCmd() *cobra.Command {
	var input api.CreatePipelineItemInput
	var contractValue float64
	var pwin int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a pursuit to the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("contract-value") {
				input.ContractValue = &contractValue
			}
			if cmd.Flags().Changed("pwin") {
				input.PwinScore = &pwin
			}
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				item, err := st.Add(ctx, input)
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&input.OpportunityID, "opportunity-id", "", "opportunity id")
	cmd.Flags().StringVar(&input.Title, "title", "", "title")
	cmd.Flags().StringVar(&input.Agency, "agency", "", "agency")
	cmd.Flags().StringVar(&input.Description, "description", "", "description")
	cmd.Flags().Float64Var(&contractValue, "contract-value", 0, "estimated contract value")
	cmd.Flags().String("due", "", "due date (RFC3339)")
	cmd.Flags().IntVar(&pwin, "pwin", 0, "win probability score (0-100)")
	_ = cmd.MarkFlagRequired("opportunity-id")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("agency")
	due := cmd.Flags().Lookup("due")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if due.Changed {
			v := due.Value.String()
			if _, err := time.Parse(time.RFC3339, v); err != nil {
				return fmt.Errorf("--due must be RFC3339: %w", err)
			}
			input.DueDate = &v
		}
		return nil
	}
	return cmd
}

func pipelineListCmd() *cobra.Command {
	var f api.PipelineFilters
	var page, limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipeline items",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit == 0 {
				cfg, err := config.LoadOptional(viper.GetString("workspace"))
				if err != nil {
					return err
				}
				limit = cfg.Defaults.PageSize
			}
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				if err := st.Fetch(ctx, page, limit, f); err != nil {
					return err
				}
				items := st.Snapshot().Items
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderPipelineTable(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.Stage, "stage", "", "stage filter")
	cmd.Flags().StringVar(&f.Priority, "priority", "", "priority filter")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (0 uses the config default)")
	return cmd
}

func pipelineActiveCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "active",
		Short: "List active proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit == 0 {
				cfg, err := config.LoadOptional(viper.GetString("workspace"))
				if err != nil {
					return err
				}
				limit = cfg.Defaults.ActiveLimit
			}
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				if err := st.FetchActive(ctx, limit); err != nil {
					return err
				}
				items := st.Snapshot().ActiveProposals
				if viper.GetBool("json") {
					return printJSON(items)
				}
				renderPipelineTable(items)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max items (0 uses the config default)")
	return cmd
}

func pipelineUpdateCmd() *cobra.Command {
	var title, agency, description, due, status, stage, priority string
	var contractValue float64
	var progress, pwin int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a pipeline item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var input api.UpdatePipelineItemInput
			flags := cmd.Flags()
			if flags.Changed("title") {
				input.Title = &title
			}
			if flags.Changed("agency") {
				input.Agency = &agency
			}
			if flags.Changed("description") {
				input.Description = &description
			}
			if flags.Changed("contract-value") {
				input.ContractValue = &contractValue
			}
			if flags.Changed("due") {
				if _, err := time.Parse(time.RFC3339, due); err != nil {
					return fmt.Errorf("--due must be RFC3339: %w", err)
				}
				input.DueDate = &due
			}
			if flags.Changed("status") {
				v := domain.Status(status)
				input.Status = &v
			}
			if flags.Changed("stage") {
				v := domain.Stage(stage)
				input.Stage = &v
			}
			if flags.Changed("priority") {
				v := domain.Priority(priority)
				input.Priority = &v
			}
			if flags.Changed("progress") {
				input.Progress = &progress
			}
			if flags.Changed("pwin") {
				input.PwinScore = &pwin
			}
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				item, err := st.Update(ctx, args[0], input)
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&agency, "agency", "", "agency")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().Float64Var(&contractValue, "contract-value", 0, "estimated contract value")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	cmd.Flags().StringVar(&status, "status", "", "status (draft|in_progress|review|submitted)")
	cmd.Flags().StringVar(&stage, "stage", "", "stage (prospecting|qualifying|proposal|negotiation|won|lost)")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (low|medium|high|critical)")
	cmd.Flags().IntVar(&progress, "progress", 0, "progress (0-100)")
	cmd.Flags().IntVar(&pwin, "pwin", 0, "win probability score (0-100)")
	return cmd
}

func pipelineDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a pipeline item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				if err := st.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
	return cmd
}

func pipelineShareCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "share <id>",
		Short: "Share a pipeline item by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				if err := st.Share(ctx, args[0], email); err != nil {
					return err
				}
				fmt.Println("shared", args[0], "with", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "recipient email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func pipelineStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Pipeline aggregate counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				if err := st.FetchStats(ctx); err != nil {
					return err
				}
				return printJSONOrTable(st.Snapshot().Stats)
			})
		},
	}
	return cmd
}

func briefCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "brief", Short: "Opportunity briefs"}
	cmd.AddCommand(briefShowCmd())
	cmd.AddCommand(briefGenerateCmd())
	return cmd
}

func briefShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <opportunity-id>",
		Short: "Show the brief for an opportunity",
		Long:  "Resolves read-through: local cache, then the API, then generation, then a placeholder. Never fails.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBriefs(cmd.Context(), func(ctx context.Context, svc *briefs.Service) error {
				b := svc.Get(ctx, args[0])
				if b.Placeholder && !viper.GetBool("json") {
					fmt.Fprintln(os.Stderr, "warning: showing placeholder; the API was unreachable")
				}
				return printJSONOrTable(b)
			})
		},
	}
	return cmd
}

func briefGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <opportunity-id>",
		Short: "Request brief generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, client *api.Client) error {
				b, err := client.GenerateBrief(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	return cmd
}

func proposalCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "proposal", Short: "Proposals"}
	cmd.AddCommand(proposalListCmd())
	cmd.AddCommand(proposalMineCmd())
	cmd.AddCommand(proposalPrimaryCmd())
	return cmd
}

func proposalListCmd() *cobra.Command {
	var skip, limit int
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, client *api.Client) error {
				items, err := client.ListProposals(ctx, skip, limit, status)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&skip, "skip", 0, "items to skip")
	cmd.Flags().IntVar(&limit, "limit", 20, "page size")
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func proposalMineCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List my proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, client *api.Client) error {
				items, err := client.MyProposals(ctx, limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "max items")
	return cmd
}

func proposalPrimaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "primary <opportunity-id>",
		Short: "Show the primary proposal for an opportunity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBriefs(cmd.Context(), func(ctx context.Context, svc *briefs.Service) error {
				p, err := svc.PrimaryProposal(ctx, args[0])
				if err != nil {
					return err
				}
				if p == nil {
					fmt.Println("no proposals for", args[0])
					return nil
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func opportunityCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "opportunity", Short: "Opportunities"}
	cmd.AddCommand(opportunityTopCmd())
	cmd.AddCommand(opportunitySearchCmd())
	cmd.AddCommand(opportunitySAMSearchCmd())
	return cmd
}

func opportunityTopCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Top opportunities by response deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, client *api.Client) error {
				items, err := client.TopOpportunities(ctx, limit)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "max items")
	return cmd
}

func opportunitySearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search opportunities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, client *api.Client) error {
				items, err := client.SearchOpportunities(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func opportunitySAMSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sam-search <query>",
		Short: "Search SAM.gov sourced opportunities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, client *api.Client) error {
				items, err := client.SAMSearch(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func dashboardCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "dashboard", Short: "Dashboard"}
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Dashboard aggregate counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd.Context(), func(ctx context.Context, client *api.Client) error {
				stats, err := client.DashboardStats(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(stats)
			})
		},
	}
	cmd.AddCommand(stats)
	return cmd
}

func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "calendar", Short: "Deadline calendar helpers"}
	cmd.AddCommand(calendarExportCmd())
	cmd.AddCommand(calendarColorCmd())
	cmd.AddCommand(calendarDueCmd())
	return cmd
}

func calendarExportCmd() *cobra.Command {
	var title, description, location, start, end, eventURL, platform, outPath string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a deadline to a calendar",
		Long:  "Apple gets an ICS file; Android a calendar intent; Google and Outlook a prefilled web link.",
		RunE: func(cmd *cobra.Command, args []string) error {
			startAt, err := time.Parse(time.RFC3339, start)
			if err != nil {
				return fmt.Errorf("--start must be RFC3339: %w", err)
			}
			event := calendar.Event{
				Title:       title,
				Description: description,
				Location:    location,
				StartDate:   startAt,
				URL:         eventURL,
			}
			if end != "" {
				endAt, err := time.Parse(time.RFC3339, end)
				if err != nil {
					return fmt.Errorf("--end must be RFC3339: %w", err)
				}
				event.EndDate = &endAt
			}
			if platform == "" {
				cfg, err := config.LoadOptional(viper.GetString("workspace"))
				if err != nil {
					return err
				}
				platform = cfg.Defaults.Platform
			}
			export := calendar.ForPlatform(platform).Export(event)
			if viper.GetBool("json") {
				return printJSON(export)
			}
			if export.Kind == "ics" {
				path := outPath
				if path == "" {
					path = export.Filename
				}
				if err := os.WriteFile(path, []byte(export.Content), 0o644); err != nil {
					return err
				}
				fmt.Println("wrote", path)
				return nil
			}
			fmt.Println(export.Content)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "event title")
	cmd.Flags().StringVar(&description, "description", "", "event description")
	cmd.Flags().StringVar(&location, "location", "", "event location")
	cmd.Flags().StringVar(&start, "start", "", "start time (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "end time (RFC3339, defaults to start plus one hour)")
	cmd.Flags().StringVar(&eventURL, "url", "", "event URL")
	cmd.Flags().StringVar(&platform, "platform", "", "apple|android|google|outlook (defaults from config)")
	cmd.Flags().StringVar(&outPath, "out", "", "ICS output path (defaults to the event filename)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("start")
	return cmd
}

func calendarColorCmd() *cobra.Command {
	var due, priority string
	var pwin int
	cmd := &cobra.Command{
		Use:   "color",
		Short: "Urgency color for a deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			var dueAt *time.Time
			if due != "" {
				t, err := time.Parse(time.RFC3339, due)
				if err != nil {
					return fmt.Errorf("--due must be RFC3339: %w", err)
				}
				dueAt = &t
			}
			var color calendar.Color
			if cmd.Flags().Changed("pwin") {
				color = calendar.ColorForScore(dueAt, pwin, time.Now())
			} else {
				color = calendar.ColorFor(dueAt, domain.Priority(priority).Normalize(), time.Now())
			}
			fmt.Println(color)
			return nil
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339); omit for no deadline")
	cmd.Flags().StringVar(&priority, "priority", "medium", "priority (low|medium|high|critical)")
	cmd.Flags().IntVar(&pwin, "pwin", 0, "win probability score instead of a priority")
	return cmd
}

func calendarDueCmd() *cobra.Command {
	var due string
	cmd := &cobra.Command{
		Use:   "due",
		Short: "Humanized countdown for a deadline",
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := time.Parse(time.RFC3339, due)
			if err != nil {
				return fmt.Errorf("--due must be RFC3339: %w", err)
			}
			fmt.Println(calendar.FormatDaysUntilDue(calendar.DaysUntil(t, time.Now())))
			return nil
		},
	}
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func assistCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "assist", Short: "AI writing assistance"}
	cmd.AddCommand(assistGenerateCmd())
	cmd.AddCommand(assistComplianceCmd())
	cmd.AddCommand(assistAnalyzeCmd())
	cmd.AddCommand(assistSuggestCmd())
	return cmd
}

func assistGenerateCmd() *cobra.Command {
	var req assist.GenerateRequest
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate proposal text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAssist(cmd.Context(), func(ctx context.Context, client *assist.Client) error {
				resp, err := client.Generate(ctx, req)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(resp)
				}
				fmt.Println(resp.Text)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&req.Prompt, "prompt", "", "what to write")
	cmd.Flags().StringVar(&req.SectionType, "section", "", "proposal section type")
	cmd.Flags().StringVar(&req.Context, "context", "", "additional context")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func assistComplianceCmd() *cobra.Command {
	var req assist.ComplianceRequest
	cmd := &cobra.Command{
		Use:   "compliance-check",
		Short: "Check text against FAR requirements",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAssist(cmd.Context(), func(ctx context.Context, client *assist.Client) error {
				resp, err := client.ComplianceCheck(ctx, req)
				if err != nil {
					return err
				}
				return printJSONOrTable(resp)
			})
		},
	}
	cmd.Flags().StringVar(&req.Text, "text", "", "text to check")
	cmd.Flags().StringVar(&req.FARClause, "far-clause", "", "specific FAR clause")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func assistAnalyzeCmd() *cobra.Command {
	var req assist.AnalyzeRequest
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze proposal text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAssist(cmd.Context(), func(ctx context.Context, client *assist.Client) error {
				resp, err := client.Analyze(ctx, req)
				if err != nil {
					return err
				}
				return printJSONOrTable(resp)
			})
		},
	}
	cmd.Flags().StringVar(&req.Text, "text", "", "text to analyze")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func assistSuggestCmd() *cobra.Command {
	var req assist.SuggestRequest
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest improvements for proposal text",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAssist(cmd.Context(), func(ctx context.Context, client *assist.Client) error {
				resp, err := client.Suggest(ctx, req)
				if err != nil {
					return err
				}
				return printJSONOrTable(resp)
			})
		},
	}
	cmd.Flags().StringVar(&req.Text, "text", "", "text to improve")
	cmd.Flags().StringVar(&req.Section, "section", "", "proposal section")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func logCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Local activity log",
	}
	cmd.AddCommand(logTailCmd())
	return cmd
}

func logTailCmd() *cobra.Command {
	var limit int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Show recent activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				events, err := r.LatestEvents(ctx, limit, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Actor"})
				for _, e := range events {
					entity := e.EntityKind
					if e.EntityID != "" {
						entity += "/" + e.EntityID
					}
					tw.AppendRow(table.Row{e.TS, e.Type, entity, e.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "max entries")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind filter")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id filter")
	return cmd
}

func serveStubCmd() *cobra.Command {
	var addr string
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve-stub",
		Short: "Run the local stub API server",
		Long:  "Serves the GovSure API from the workspace sqlite database for offline development.",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			if seed {
				if err := stub.Seed(cmd.Context(), repo.Repo{DB: conn}, nil); err != nil {
					return err
				}
			}
			authCfg := stub.AuthConfig{JWTSecret: os.Getenv("GOVSURE_JWT_SECRET")}
			if authCfg.JWTSecret == "" {
				fmt.Fprintln(os.Stderr, "warning: GOVSURE_JWT_SECRET unset; serving without auth")
			}
			handler, err := stub.New(stub.Config{DB: conn, Auth: authCfg})
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
			fmt.Printf("Serving GovSure stub API on http://%s (docs at /docs)\n", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "listen address")
	cmd.Flags().BoolVar(&seed, "seed", false, "load fixture opportunities and proposals")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration"}
	cmd.AddCommand(configShowCmd())
	cmd.AddCommand(configValidateCmd())
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	}
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default govsure.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func authCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "auth", Short: "Authentication helpers"}
	cmd.AddCommand(authInspectCmd())
	cmd.AddCommand(authDevTokenCmd())
	return cmd
}

func authInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Decode the resolved bearer token (no signature check)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			token := resolveToken(cfg)
			if token == "" {
				return fmt.Errorf("no token configured (flag, config, or env)")
			}
			claims := jwt.MapClaims{}
			if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
				return fmt.Errorf("not a parseable JWT: %w", err)
			}
			return printJSONOrTable(claims)
		},
	}
	return cmd
}

func authDevTokenCmd() *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "dev-token",
		Short: "Mint a token for the local stub server",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("GOVSURE_JWT_SECRET")
			token, err := stub.IssueDevToken(secret, subject, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "dev-user", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func withClient(ctx context.Context, fn func(context.Context, *api.Client) error) error {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	baseURL := viper.GetString("base-url")
	if baseURL == "" {
		baseURL = cfg.API.BaseURL
	}
	return fn(ctx, api.New(baseURL, resolveToken(cfg)))
}

// resolveToken picks the bearer token: the --token flag (or GOVSURE_TOKEN)
// wins, then whatever the workspace config resolves.
func resolveToken(cfg *config.Config) string {
	if token := viper.GetString("token"); token != "" {
		return token
	}
	return cfg.ResolveToken()
}

func withStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	return withClient(ctx, func(ctx context.Context, client *api.Client) error {
		return fn(ctx, store.New(client))
	})
}

// withBriefs wires the API client to the workspace sqlite cache.
func withBriefs(ctx context.Context, fn func(context.Context, *briefs.Service) error) error {
	return withClient(ctx, func(ctx context.Context, client *api.Client) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		conn, err := db.Open(db.Config{Workspace: workspace})
		if err != nil {
			return err
		}
		defer conn.Close()
		if err := migrate.Migrate(conn); err != nil {
			return err
		}
		return fn(ctx, briefs.NewService(client, repo.Repo{DB: conn}))
	})
}

func withAssist(ctx context.Context, fn func(context.Context, *assist.Client) error) error {
	cfg, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	baseURL := cfg.Assist.BaseURL
	if baseURL == "" {
		baseURL = cfg.API.BaseURL
	}
	return fn(ctx, assist.New(baseURL, resolveToken(cfg)))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func renderPipelineTable(items []domain.PipelineItem) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Agency", "Status", "Stage", "Priority", "Due", "Urgency"})
	now := time.Now()
	for _, it := range items {
		due := ""
		dueCell := ""
		if it.DueDate != nil {
			due = *it.DueDate
		}
		var dueAt *time.Time
		if due != "" {
			if t, err := time.Parse(time.RFC3339, due); err == nil {
				dueAt = &t
				dueCell = calendar.FormatDaysUntilDue(calendar.DaysUntil(t, now))
			} else {
				dueCell = due
			}
		}
		color := calendar.ColorFor(dueAt, it.Priority, now)
		tw.AppendRow(table.Row{it.ID, it.Title, it.Agency, it.Status, it.Stage, it.Priority, dueCell, color})
	}
	tw.Render()
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
