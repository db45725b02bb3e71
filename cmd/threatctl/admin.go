package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mikey/mail-threat-engine/internal/core"
)

// ruleFile is the document accepted by "rules replace"
type ruleFile struct {
	Rules []core.RuleSpec `yaml:"rules"`
}

// trainingFile is the document accepted by "train"
type trainingFile struct {
	Emails []core.LabeledEmail `yaml:"emails"`
}

func (a *app) rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage tenant spam rules",
	}

	replace := &cobra.Command{
		Use:   "replace <file>",
		Short: "Replace the tenant's whole rule set from a YAML/JSON file",
		Long: `Replace the tenant's rule set. The file holds a "rules" list whose entries
have name, type (sender, subject, content, header), pattern, is_regex,
action (block, quarantine, flag), priority and is_active. An empty list
clears the rule set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var file ruleFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("failed to parse rule file: %w", err)
			}

			return a.run(func(e *engine) error {
				result, err := e.service.ReplaceRules(context.Background(), e.tenantID, a.userID, file.Rules)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the tenant's rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(e *engine) error {
				rules, err := e.service.ListRules(context.Background(), e.tenantID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(rules) == 0 {
					fmt.Fprintln(out, "No rules")
					return nil
				}
				fmt.Fprintf(out, "%-8s %-10s %-8s %-6s %-20s %s\n", "PRIORITY", "ACTION", "TYPE", "ACTIVE", "NAME", "PATTERN")
				for _, r := range rules {
					pattern := r.Pattern
					if r.IsRegex {
						pattern = "/" + pattern + "/"
					}
					fmt.Fprintf(out, "%-8d %-10s %-8s %-6t %-20s %s\n", r.Priority, r.Action, r.Type, r.IsActive, r.Name, pattern)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(replace, list)
	return cmd
}

func (a *app) trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train <file>",
		Short: "Submit a batch of labeled corrections",
		Long: `Submit user corrections from a YAML/JSON file holding an "emails" list of
entries with id, is_spam, subject, body and from_email. The batch is logged
and handed to the configured retraining provider.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var file trainingFile
			if err := yaml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("failed to parse training file: %w", err)
			}

			return a.run(func(e *engine) error {
				result, err := e.service.TrainFeedback(context.Background(), e.tenantID, a.userID, file.Emails)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show scan statistics for a lookback window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(e *engine) error {
				stats, err := e.service.GetStatistics(context.Background(), e.tenantID, days)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 0, "Lookback window in days (0 uses the default)")
	return cmd
}

func (a *app) reputationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reputation",
		Short: "Inspect and administer sender reputation",
	}

	// sender runs fn for a command that takes one sender address
	sender := func(use, short string, fn func(e *engine, email string) error) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <email>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(func(e *engine) error {
					return fn(e, args[0])
				})
			},
		}
	}

	get := &cobra.Command{
		Use:   "get <email>",
		Short: "Show a sender's reputation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(e *engine) error {
				rep, err := e.service.GetSenderReputation(context.Background(), e.tenantID, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), struct {
					*core.SenderReputation
					Score float64 `json:"score"`
				}{rep, rep.Score()})
			})
		},
	}

	block := sender("block", "Block a sender", func(e *engine, email string) error {
		return e.service.SetSenderBlocked(context.Background(), e.tenantID, a.userID, email, true)
	})
	unblock := sender("unblock", "Clear a sender's block", func(e *engine, email string) error {
		return e.service.SetSenderBlocked(context.Background(), e.tenantID, a.userID, email, false)
	})

	var remove bool
	allow := sender("whitelist", "Whitelist a sender", func(e *engine, email string) error {
		return e.service.SetSenderWhitelisted(context.Background(), e.tenantID, a.userID, email, !remove)
	})
	allow.Flags().BoolVar(&remove, "remove", false, "Remove the sender from the whitelist")

	purge := sender("purge", "Delete a sender's reputation record", func(e *engine, email string) error {
		return e.service.PurgeSender(context.Background(), e.tenantID, a.userID, email)
	})

	domain := &cobra.Command{
		Use:   "domain <domain>",
		Short: "Show the aggregate reputation of a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(e *engine) error {
				rep, err := e.service.GetDomainReputation(context.Background(), e.tenantID, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), struct {
					*core.DomainReputation
					Score float64 `json:"score"`
				}{rep, rep.Score()})
			})
		},
	}

	cmd.AddCommand(get, block, unblock, allow, purge, domain)
	return cmd
}
