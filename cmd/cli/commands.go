package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/urfave/cli/v2"

	"github.com/and161185/event-keeper/internal/authn"
	"github.com/and161185/event-keeper/internal/convert"
	"github.com/and161185/event-keeper/internal/jsonval"
	"github.com/and161185/event-keeper/internal/model"
	"github.com/and161185/event-keeper/internal/tracker"
)

func publicIDArg(c *cli.Context) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", errors.New("need <public_id>")
	}
	return id, nil
}

func printResult(c *cli.Context, res convert.EventResult) {
	printJSON(c.App.Writer, map[string]any{
		"ver":           res.Ver,
		"status":        res.Status,
		"conflictToken": res.ConflictToken,
		"updatedAt":     res.UpdatedAt,
		"event":         res.Event,
	})
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue and store a manager access token (shared signing key)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "key", Usage: "HS256 signing key", EnvVars: []string{"EK_JWT_KEY"}, Required: true},
			&cli.StringFlag{Name: "manager", Usage: "manager id (uuid); new when empty", EnvVars: []string{"EK_MANAGER_ID"}},
			&cli.DurationFlag{Name: "ttl", Value: 24 * time.Hour, Usage: "token lifetime"},
		},
		Action: func(c *cli.Context) error {
			managerID := uuid.Must(uuid.NewV4())
			if v := c.String("manager"); v != "" {
				id, err := uuid.FromString(v)
				if err != nil {
					return fmt.Errorf("bad manager id: %w", err)
				}
				managerID = id
			}
			tok, exp, err := authn.Issue([]byte(c.String("key")), managerID, c.Duration("ttl"), time.Now())
			if err != nil {
				return err
			}
			if err := saveToken(tok, exp); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "manager %s, token valid until %s\n", managerID, exp.UTC().Format(time.RFC3339))
			return nil
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "fetch an event and start a local session",
		ArgsUsage: "<public_id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "discard unsaved local changes"},
		},
		Action: func(c *cli.Context) error {
			publicID, err := publicIDArg(c)
			if err != nil {
				return err
			}
			if prev, err := loadSession(publicID); err == nil && prev.HasUnsavedChanges() && !c.Bool("force") {
				return fmt.Errorf("%s has unsaved changes; push them or use --force", publicID)
			}
			cl, ctx, cancel, err := dial(c)
			if err != nil {
				return err
			}
			defer cancel()
			defer cl.Close()

			res, err := cl.Get(ctx, publicID)
			if err != nil {
				return err
			}
			s := tracker.New()
			s.Initialize(res.Event)
			if err := saveSession(publicID, s); err != nil {
				return err
			}
			printResult(c, res)
			return nil
		},
	}
}

// parseSet splits key=value; the value is JSON when it parses, else a string.
func parseSet(kv string) (string, any, error) {
	k, raw, ok := strings.Cut(kv, "=")
	if !ok || k == "" {
		return "", nil, fmt.Errorf("bad --set %q, want key=value", kv)
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return k, raw, nil
	}
	return k, v, nil
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "apply a partial update to the local session",
		ArgsUsage: "<public_id>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "set", Usage: "key=value (value as JSON, else string); repeatable"},
			&cli.StringFlag{Name: "file", Usage: "JSON object merged into the document ('-'=stdin)"},
		},
		Action: func(c *cli.Context) error {
			publicID, err := publicIDArg(c)
			if err != nil {
				return err
			}
			s, err := loadSession(publicID)
			if err != nil {
				return err
			}
			partial := jsonval.Object{}
			if p := c.String("file"); p != "" {
				b, err := readAll(p)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(b, &partial); err != nil {
					return fmt.Errorf("%s: want JSON object: %w", p, err)
				}
			}
			for _, kv := range c.StringSlice("set") {
				k, v, err := parseSet(kv)
				if err != nil {
					return err
				}
				partial[k] = v
			}
			if len(partial) == 0 {
				return errors.New("nothing to edit; use --set or --file")
			}
			if _, ok := partial[model.KeyPublicID]; ok {
				return errors.New("public_id cannot be edited")
			}
			s.Update(partial)
			if err := saveSession(publicID, s); err != nil {
				return err
			}
			renderChanges(c.App.Writer, s.Changes())
			return nil
		},
	}
}

func diffCommand() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "show unsaved changes of the local session",
		ArgsUsage: "<public_id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the incremental payload as JSON"},
		},
		Action: func(c *cli.Context) error {
			publicID, err := publicIDArg(c)
			if err != nil {
				return err
			}
			s, err := loadSession(publicID)
			if err != nil {
				return err
			}
			if c.Bool("json") {
				if env := s.Payload(); env != nil {
					printJSON(c.App.Writer, env)
				} else {
					fmt.Fprintln(c.App.Writer, "null")
				}
				return nil
			}
			renderChanges(c.App.Writer, s.Changes())
			renderSize(c.App.Writer, s.SizeComparison())
			return nil
		},
	}
}

func statusFlag() cli.Flag {
	return &cli.StringFlag{Name: "status", Usage: "set publication status (draft|published)"}
}

func checkStatus(c *cli.Context) (string, error) {
	st := c.String("status")
	if st == "" {
		return "", nil
	}
	if _, ok := model.ParseStatus(st); !ok {
		return "", fmt.Errorf("unknown status %q", st)
	}
	return st, nil
}

func pushCommand() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     "send unsaved changes as an incremental update",
		ArgsUsage: "<public_id>",
		Flags:     []cli.Flag{statusFlag()},
		Action: func(c *cli.Context) error {
			publicID, err := publicIDArg(c)
			if err != nil {
				return err
			}
			st, err := checkStatus(c)
			if err != nil {
				return err
			}
			s, err := loadSession(publicID)
			if err != nil {
				return err
			}
			cl, ctx, cancel, err := dial(c)
			if err != nil {
				return err
			}
			defer cancel()
			defer cl.Close()

			res, pushed, err := cl.Push(ctx, s, st)
			if err != nil {
				return err
			}
			if !pushed {
				fmt.Fprintln(c.App.Writer, "nothing to push")
				return nil
			}
			if err := saveSession(publicID, s); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s saved at ver %d (%s)\n", publicID, res.Ver, res.Status)
			return nil
		},
	}
}

func saveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "send the whole document (creates the event with --file)",
		ArgsUsage: "[public_id]",
		Flags: []cli.Flag{
			statusFlag(),
			&cli.StringFlag{Name: "file", Usage: "new event document as JSON ('-'=stdin)"},
		},
		Action: func(c *cli.Context) error {
			st, err := checkStatus(c)
			if err != nil {
				return err
			}
			var s *tracker.Session
			switch p := c.String("file"); {
			case p != "":
				b, err := readAll(p)
				if err != nil {
					return err
				}
				var doc jsonval.Object
				if err := json.Unmarshal(b, &doc); err != nil {
					return fmt.Errorf("%s: want JSON object: %w", p, err)
				}
				s = tracker.New()
				s.Initialize(doc)
			default:
				publicID, err := publicIDArg(c)
				if err != nil {
					return err
				}
				if s, err = loadSession(publicID); err != nil {
					return err
				}
			}

			cl, ctx, cancel, err := dial(c)
			if err != nil {
				return err
			}
			defer cancel()
			defer cl.Close()

			res, err := cl.SaveFull(ctx, s, st)
			if err != nil {
				return err
			}
			publicID, _ := res.Event[model.KeyPublicID].(string)
			if err := saveSession(publicID, s); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s saved at ver %d (%s)\n", publicID, res.Ver, res.Status)
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "list recorded revisions, newest first",
		ArgsUsage: "<public_id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "max revisions"},
		},
		Action: func(c *cli.Context) error {
			publicID, err := publicIDArg(c)
			if err != nil {
				return err
			}
			cl, ctx, cancel, err := dial(c)
			if err != nil {
				return err
			}
			defer cancel()
			defer cl.Close()

			revs, err := cl.History(ctx, publicID, c.Int("limit"))
			if err != nil {
				return err
			}
			type row struct {
				Ver       int64           `json:"ver"`
				CreatedAt time.Time       `json:"createdAt"`
				Patch     json.RawMessage `json:"patch"`
			}
			rows := make([]row, 0, len(revs))
			for _, rv := range revs {
				patch := json.RawMessage(rv.Patch)
				if len(patch) == 0 {
					patch = json.RawMessage("null")
				}
				rows = append(rows, row{Ver: rv.Ver, CreatedAt: rv.CreatedAt, Patch: patch})
			}
			printJSON(c.App.Writer, rows)
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show local session state",
		ArgsUsage: "<public_id>",
		Action: func(c *cli.Context) error {
			publicID, err := publicIDArg(c)
			if err != nil {
				return err
			}
			s, err := loadSession(publicID)
			if err != nil {
				return err
			}
			printJSON(c.App.Writer, s.DebugInfo())
			return nil
		},
	}
}
