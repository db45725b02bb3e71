package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mikey/mail-threat-engine/internal/adapters/filter"
	"github.com/mikey/mail-threat-engine/internal/core"
)

func (a *app) scanCmd() *cobra.Command {
	var (
		envelopeFrom string
		recipients   []string
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "scan [file]",
		Short: "Score an inbound RFC 5322 message",
		Long: `Score an inbound message read from a file, or from stdin when no file
(or "-") is given. The outcome is recorded against the sender's reputation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, firstArg(args))
			if err != nil {
				return err
			}
			email, _, err := filter.ParseMessage(raw, envelopeFrom, recipients)
			if err != nil {
				return err
			}

			return a.run(func(e *engine) error {
				if asJSON {
					result, err := e.service.ScanInbound(context.Background(), e.tenantID, email)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), result)
				}
				if cli, ok := e.filter.(*filter.CliFilter); ok {
					cli.SetOutput(cmd.OutOrStdout())
				}
				_, err := e.filter.ProcessEmail(context.Background(), email)
				return err
			})
		},
	}

	cmd.Flags().StringVar(&envelopeFrom, "from", "", "Envelope sender (defaults to the From header)")
	cmd.Flags().StringSliceVar(&recipients, "rcpt", nil, "Envelope recipients (defaults to the To header)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the scan result as JSON")
	return cmd
}

func (a *app) outboundCmd() *cobra.Command {
	var (
		msgFile string
		msg     core.OutboundMessage
	)

	cmd := &cobra.Command{
		Use:   "outbound",
		Short: "Assess the deliverability of an outbound message",
		Long: `Assess an outbound message given by flags, or by a YAML/JSON file with the
fields to, cc, bcc, subject, body and attachments.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if msgFile != "" {
				data, err := readInput(cmd, msgFile)
				if err != nil {
					return err
				}
				if err := yaml.Unmarshal(data, &msg); err != nil {
					return fmt.Errorf("failed to parse message file: %w", err)
				}
			}
			if strings.HasPrefix(msg.Body, "@") {
				data, err := os.ReadFile(strings.TrimPrefix(msg.Body, "@"))
				if err != nil {
					return fmt.Errorf("failed to read body: %w", err)
				}
				msg.Body = string(data)
			}

			return a.run(func(e *engine) error {
				assessment, err := e.service.ScanOutbound(context.Background(), e.tenantID, &msg)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), assessment)
			})
		},
	}

	cmd.Flags().StringVarP(&msgFile, "file", "f", "", "YAML/JSON message file (\"-\" for stdin)")
	cmd.Flags().StringSliceVar(&msg.To, "to", nil, "Recipients")
	cmd.Flags().StringSliceVar(&msg.CC, "cc", nil, "CC recipients")
	cmd.Flags().StringSliceVar(&msg.BCC, "bcc", nil, "BCC recipients")
	cmd.Flags().StringVar(&msg.Subject, "subject", "", "Subject")
	cmd.Flags().StringVar(&msg.Body, "body", "", "Body, or @path to read it from a file")
	cmd.Flags().StringSliceVar(&msg.Attachments, "attachment", nil, "Attachment file names")
	return cmd
}
