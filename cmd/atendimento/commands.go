package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/example/atendimento/internal/attachment"
	"github.com/example/atendimento/internal/attendance"
	"github.com/example/atendimento/internal/auth"
)

func newListCommand(a *app) *cobra.Command {
	var (
		query  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the attendances of the token's user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.client.ListAttendances(cmd.Context(), a.token)
			if err != nil {
				return err
			}
			summary := attendance.Summarize(list, time.Now())
			list = attendance.Filter(list, strings.TrimSpace(query))

			if asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"resumo":       summary,
					"atendimentos": list,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hoje: %d  mês: %d\n", summary.Day, summary.Month)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATA\tPACIENTE\tCPF")
			for _, item := range list {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
					item.ID, attendance.FormatDayMonth(item.Date), item.PatientName, attendance.FormatCPF(item.PatientCPF))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter by patient name or CPF")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newRegisterAttendanceCommand(a *app) *cobra.Command {
	var patientID int64

	cmd := &cobra.Command{
		Use:   "register-attendance",
		Short: "Open an attendance for a patient",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result, err := a.client.RegisterAttendance(cmd.Context(), a.token, patientID)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Int64Var(&patientID, "patient-id", 0, "patient id (paciente_id)")
	_ = cmd.MarkFlagRequired("patient-id")
	return cmd
}

func newConsentCommand(a *app) *cobra.Command {
	var (
		attendanceID int64
		photo        string
	)

	cmd := &cobra.Command{
		Use:   "consent",
		Short: "Upload the signed consent term photo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ref, err := attachment.ParseRef(photo)
			if err != nil {
				return err
			}
			result, err := a.client.UploadConsentTerm(cmd.Context(), a.token, attendanceID, ref)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Int64Var(&attendanceID, "attendance-id", 0, "attendance id (atendimento_id)")
	cmd.Flags().StringVar(&photo, "photo", "", "image data URL or file path")
	_ = cmd.MarkFlagRequired("attendance-id")
	_ = cmd.MarkFlagRequired("photo")
	return cmd
}

func newAnamnesisCommand(a *app) *cobra.Command {
	var (
		attendanceID int64
		data         string
	)

	cmd := &cobra.Command{
		Use:   "anamnesis",
		Short: "Submit the anamnesis form",
		Long:  "Submit the anamnesis form. --data takes a JSON object, or @path to read it from a file.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := readJSONArg(data)
			if err != nil {
				return err
			}
			result, err := a.client.SubmitAnamnesis(cmd.Context(), a.token, attendanceID, payload)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Int64Var(&attendanceID, "attendance-id", 0, "attendance id (atendimento_id)")
	cmd.Flags().StringVar(&data, "data", "", "JSON object or @file")
	_ = cmd.MarkFlagRequired("attendance-id")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newLesionCommand(a *app) *cobra.Command {
	var (
		attendanceID int64
		lesion       attendance.Lesion
		photos       []string
	)

	cmd := &cobra.Command{
		Use:   "lesion",
		Short: "Register a lesion with its photos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			refs := make([]attachment.Ref, 0, len(photos))
			parseErrs := make(map[int]error)
			for i, photo := range photos {
				ref, err := attachment.ParseRef(photo)
				if err != nil {
					// sent as nil so the client skips it at the same index
					parseErrs[i] = err
				}
				refs = append(refs, ref)
			}

			result, outcomes, err := a.client.RegisterLesion(cmd.Context(), a.token, attendanceID, lesion, refs)
			for _, skipped := range attachment.Skipped(outcomes) {
				reason := skipped.Err
				if parseErr, ok := parseErrs[skipped.Index]; ok {
					reason = parseErr
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "imagem %d ignorada: %v\n", skipped.Index+1, reason)
			}
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().Int64Var(&attendanceID, "attendance-id", 0, "attendance id (atendimento_id)")
	cmd.Flags().Int64Var(&lesion.LocationID, "location-id", 0, "lesion location id (local_lesao_id)")
	cmd.Flags().StringVar(&lesion.Description, "description", "", "lesion description")
	cmd.Flags().StringArrayVar(&photos, "photo", nil, "image data URL or file path, repeatable")
	_ = cmd.MarkFlagRequired("attendance-id")
	_ = cmd.MarkFlagRequired("location-id")
	return cmd
}

func newHealthUnitCommand(a *app) *cobra.Command {
	var unit attendance.HealthUnit

	cmd := &cobra.Command{
		Use:   "health-unit",
		Short: "Register a health unit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := unit.Validate(); err != nil {
				return err
			}
			result, err := a.client.RegisterHealthUnit(cmd.Context(), a.token, unit)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&unit.Name, "name", "", "unit name")
	cmd.Flags().StringVar(&unit.Location, "location", "", "unit address")
	cmd.Flags().StringVar(&unit.Code, "code", "", "unit code")
	cmd.Flags().StringVar(&unit.City, "city", "", "unit city")
	cmd.Flags().BoolVar(&unit.Active, "active", true, "whether the unit is active")
	return cmd
}

func newTokenCommand() *cobra.Command {
	var (
		subject  string
		secret   string
		audience string
		ttl      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the local sandbox",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if audience == "" {
				audience = os.Getenv("JWT_AUDIENCE")
			}
			now := time.Now()
			signed, err := auth.IssueToken(secret, subject, audience, jwt.RegisteredClaims{
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "user id placed in the sub claim")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 secret (default $JWT_SECRET)")
	cmd.Flags().StringVar(&audience, "audience", "", "audience claim (default $JWT_AUDIENCE)")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// readJSONArg accepts inline JSON or @path and requires an object.
func readJSONArg(value string) (json.RawMessage, error) {
	raw := []byte(value)
	if path, ok := strings.CutPrefix(value, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		raw = data
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return nil, errors.New("anamnesis data must be a JSON object")
	}
	return json.RawMessage(raw), nil
}
