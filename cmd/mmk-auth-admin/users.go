package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/mmk-auth-api/internal/adapters/passhash"
	"github.com/target/mmk-auth-api/internal/core"
	"github.com/target/mmk-auth-api/internal/data"
	domainauth "github.com/target/mmk-auth-api/internal/domain/auth"
	apperrors "github.com/target/mmk-auth-api/internal/errors"
	"github.com/target/mmk-auth-api/internal/ports"
)

// passwordEnv lets scripts supply a password without putting it on the command line.
const passwordEnv = "MMK_ADMIN_PASSWORD"

type createUserOptions struct {
	domainauth.RegisterRequest
}

type listUsersOptions struct {
	Limit  int
	Offset int
}

type deleteUserOptions struct {
	Username string
	Yes      bool
}

func runCreateUser(cmdCtx *commandContext, args []string) error {
	opts, err := parseCreateUserFlags(args, os.Getenv(passwordEnv))
	if err != nil {
		return err
	}
	hasher := passhash.NewBcryptHasher(cmdCtx.Config.Auth.BcryptCost)
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		user, createErr := createUser(ctx, data.NewUserRepo(db), hasher, opts)
		if createErr != nil {
			return createErr
		}
		cmdCtx.Logger.Info("created user", "id", user.ID, "username", user.Username, "role", user.Role)
		return writef(os.Stdout, "created %s (%s) role=%s\n", user.Username, user.ID, user.Role)
	})
}

func runListUsers(cmdCtx *commandContext, args []string) error {
	opts, err := parseListUsersFlags(args)
	if err != nil {
		return err
	}
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		return listUsers(ctx, data.NewUserRepo(db), os.Stdout, opts)
	})
}

func runDeleteUser(cmdCtx *commandContext, args []string) error {
	opts, err := parseDeleteUserFlags(args)
	if err != nil {
		return err
	}
	if !opts.Yes {
		if confirmErr := confirm(os.Stdin, os.Stdout, fmt.Sprintf("Delete user %q?", opts.Username)); confirmErr != nil {
			return confirmErr
		}
	}
	return withDatabase(cmdCtx, defaultCommandTimeout, func(ctx context.Context, db *sql.DB) error {
		if delErr := deleteUser(ctx, data.NewUserRepo(db), opts.Username); delErr != nil {
			return delErr
		}
		cmdCtx.Logger.Info("deleted user", "username", opts.Username)
		return nil
	})
}

func parseCreateUserFlags(args []string, envPassword string) (createUserOptions, error) {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts createUserOptions
	fs.StringVar(&opts.Username, "username", "", "Username (required)")
	fs.StringVar(&opts.Email, "email", "", "Email address (required)")
	fs.StringVar(&opts.Password, "password", "", "Password; defaults to $"+passwordEnv)
	fs.StringVar(&opts.FirstName, "first-name", "", "Given name")
	fs.StringVar(&opts.LastName, "last-name", "", "Family name")
	fs.StringVar(&opts.Role, "role", string(domainauth.RoleUser), "Role: USER or ADMIN")

	if err := fs.Parse(args); err != nil {
		return createUserOptions{}, err
	}
	if opts.Password == "" {
		opts.Password = envPassword
	}
	return opts, nil
}

func parseListUsersFlags(args []string) (listUsersOptions, error) {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listUsersOptions{}
	fs.IntVar(&opts.Limit, "limit", 50, "Maximum number of users to show")
	fs.IntVar(&opts.Offset, "offset", 0, "Number of users to skip")

	if err := fs.Parse(args); err != nil {
		return listUsersOptions{}, err
	}
	if opts.Limit <= 0 {
		return listUsersOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.Offset < 0 {
		return listUsersOptions{}, errors.New("--offset must not be negative")
	}
	return opts, nil
}

func parseDeleteUserFlags(args []string) (deleteUserOptions, error) {
	fs := flag.NewFlagSet("delete-user", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts deleteUserOptions
	fs.StringVar(&opts.Username, "username", "", "Username to delete (required)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return deleteUserOptions{}, err
	}
	opts.Username = strings.TrimSpace(opts.Username)
	if opts.Username == "" {
		return deleteUserOptions{}, errors.New("--username is required")
	}
	return opts, nil
}

func createUser(
	ctx context.Context,
	repo core.UserRepository,
	hasher ports.PasswordHasher,
	opts createUserOptions,
) (*domainauth.User, error) {
	req := opts.RegisterRequest
	req.Normalize()
	if fields := req.Validate(); fields != nil {
		return nil, apperrors.ValidationFields("invalid user", fields)
	}
	role, ok := domainauth.ParseRole(req.Role)
	if !ok {
		return nil, apperrors.ValidationFields("invalid user", domainauth.RoleFieldError())
	}
	hash, err := hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return repo.Create(ctx, &domainauth.CreateUserRequest{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		AuthSource:   domainauth.AuthSourceLocal,
	})
}

func listUsers(ctx context.Context, repo core.UserRepository, out io.Writer, opts listUsersOptions) error {
	users, err := repo.List(ctx, opts.Limit, opts.Offset)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	total, err := repo.Count(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if len(users) == 0 {
		return writeln(out, "(no users found)")
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if err = writeln(tw, "ID\tUSERNAME\tEMAIL\tROLE\tSOURCE\tCREATED"); err != nil {
		return err
	}
	for _, u := range users {
		if err = writef(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Username, u.Email, u.Role, u.AuthSource, u.CreatedAt.UTC().Format(time.RFC3339)); err != nil {
			return err
		}
	}
	if err = tw.Flush(); err != nil {
		return err
	}
	return writef(out, "\nShowing %d of %d users\n", len(users), total)
}

func deleteUser(ctx context.Context, repo core.UserRepository, username string) error {
	u, err := repo.GetByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("find user %q: %w", username, err)
	}
	deleted, err := repo.Delete(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("delete user %q: %w", username, err)
	}
	if !deleted {
		return apperrors.NotFoundf("user %q not found", username)
	}
	return nil
}
