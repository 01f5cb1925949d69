package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/target/mmk-auth-api/config"
	"github.com/target/mmk-auth-api/internal/service"
)

type inspectTokenOptions struct {
	Token  string
	Verify bool
}

type tokenReport struct {
	Subject   string    `json:"sub"`
	UserID    string    `json:"uid,omitempty"`
	Role      string    `json:"role,omitempty"`
	Issuer    string    `json:"iss,omitempty"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	Expired   bool      `json:"expired"`
	Verified  *bool     `json:"verified,omitempty"`
	Error     string    `json:"verify_error,omitempty"`
}

func runInspectToken(cmdCtx *commandContext, args []string) error {
	opts, err := parseInspectTokenFlags(args, os.Stdin)
	if err != nil {
		return err
	}
	return inspectToken(os.Stdout, cmdCtx.Config.Token, opts, time.Now())
}

// parseInspectTokenFlags takes the token from the first argument, or from stdin when it is "-" or absent.
func parseInspectTokenFlags(args []string, stdin io.Reader) (inspectTokenOptions, error) {
	fs := flag.NewFlagSet("inspect-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts inspectTokenOptions
	fs.BoolVar(&opts.Verify, "verify", false, "Verify signature, issuer and expiry with TOKEN_SECRET")

	if err := fs.Parse(args); err != nil {
		return inspectTokenOptions{}, err
	}
	opts.Token = strings.TrimSpace(fs.Arg(0))
	if opts.Token == "" || opts.Token == "-" {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return inspectTokenOptions{}, fmt.Errorf("read token: %w", err)
		}
		opts.Token = strings.TrimSpace(line)
	}
	opts.Token = strings.TrimSpace(strings.TrimPrefix(opts.Token, "Bearer "))
	if opts.Token == "" {
		return inspectTokenOptions{}, errors.New("token is required")
	}
	return opts, nil
}

func inspectToken(out io.Writer, cfg config.TokenConfig, opts inspectTokenOptions, now time.Time) error {
	claims, err := service.ParseUnverified(opts.Token)
	if err != nil {
		return err
	}
	report := tokenReport{
		Subject: claims.Subject,
		UserID:  claims.UserID,
		Role:    claims.Role,
		Issuer:  claims.Issuer,
	}
	if claims.IssuedAt != nil {
		report.IssuedAt = claims.IssuedAt.UTC()
	}
	if claims.ExpiresAt != nil {
		report.ExpiresAt = claims.ExpiresAt.UTC()
		report.Expired = !now.Before(claims.ExpiresAt.Time)
	}

	if opts.Verify {
		verified, verifyErr := verifyToken(cfg, opts.Token, now)
		report.Verified = &verified
		if verifyErr != nil {
			report.Error = verifyErr.Error()
		}
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func verifyToken(cfg config.TokenConfig, token string, now time.Time) (bool, error) {
	tokens, err := service.NewTokenService(service.TokenServiceOptions{
		Secret:    []byte(cfg.Secret),
		TTL:       cfg.TTL,
		Issuer:    cfg.Issuer,
		ClockSkew: cfg.ClockSkew,
		Now:       func() time.Time { return now },
	})
	if err != nil {
		return false, err
	}
	if _, err = tokens.Validate(token); err != nil {
		return false, err
	}
	return true, nil
}
