package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"fbadmin/internal/admin"
	"fbadmin/internal/users"
)

func newCmdAuth(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Firebase Authentication users",
		Args:  cobra.ArbitraryArgs,
		RunE:  usage,
	}
	cmd.AddCommand(newCmdAuthGet(rt))
	cmd.AddCommand(newCmdAuthGetByEmail(rt))
	cmd.AddCommand(newCmdAuthGetByPhone(rt))
	cmd.AddCommand(newCmdAuthCreate(rt))
	cmd.AddCommand(newCmdAuthUpdate(rt))
	cmd.AddCommand(newCmdAuthDelete(rt))
	cmd.AddCommand(newCmdAuthSmoke(rt))
	return cmd
}

// usersService builds the user service over the Admin SDK auth client
func (rt *runtime) usersService(ctx context.Context) (*users.Service, error) {
	provider, err := rt.credentials(ctx)
	if err != nil {
		return nil, err
	}
	app, err := provider.NewApp(ctx)
	if err != nil {
		return nil, err
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, &admin.CredentialError{Source: "auth", Err: err}
	}
	return users.NewService(client, rt.logger, rt.metrics), nil
}

func newCmdAuthGet(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get <uid>",
		Short: "Fetch a user by uid",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.usersService(cmd.Context())
			if err != nil {
				return err
			}
			record, err := svc.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printUser(cmd.OutOrStdout(), "Successfully fetched user data", record)
		},
	}
}

func newCmdAuthGetByEmail(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get-by-email <email>",
		Short: "Fetch a user by email address",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.usersService(cmd.Context())
			if err != nil {
				return err
			}
			record, err := svc.GetUserByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printUser(cmd.OutOrStdout(), "Successfully fetched user data", record)
		},
	}
}

func newCmdAuthGetByPhone(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "get-by-phone <phone>",
		Short: "Fetch a user by E.164 phone number",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.usersService(cmd.Context())
			if err != nil {
				return err
			}
			record, err := svc.GetUserByPhoneNumber(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printUser(cmd.OutOrStdout(), "Successfully fetched user data", record)
		},
	}
}

func newCmdAuthCreate(rt *runtime) *cobra.Command {
	var flags userFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.usersService(cmd.Context())
			if err != nil {
				return err
			}
			record, err := svc.CreateUser(cmd.Context(), flags.createRequest(cmd))
			if err != nil {
				return err
			}
			return printUser(cmd.OutOrStdout(), "Successfully created new user", record)
		},
	}
	cmd.Flags().StringVar(&flags.uid, "uid", "", "Explicit uid (generated by the server when omitted)")
	flags.register(cmd)
	return cmd
}

func newCmdAuthUpdate(rt *runtime) *cobra.Command {
	var flags userFlags
	cmd := &cobra.Command{
		Use:   "update <uid>",
		Short: "Update the given fields of a user",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, changed := flags.updateRequest(cmd)
			if !changed {
				return fmt.Errorf("%w: nothing to update", admin.ErrInvalidArgument)
			}
			svc, err := rt.usersService(cmd.Context())
			if err != nil {
				return err
			}
			record, err := svc.UpdateUser(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			return printUser(cmd.OutOrStdout(), "Successfully updated user", record)
		},
	}
	flags.register(cmd)
	return cmd
}

func newCmdAuthDelete(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <uid>",
		Short: "Delete a user",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.usersService(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Successfully deleted user: %s\n", args[0])
			return nil
		},
	}
}

func newCmdAuthSmoke(rt *runtime) *cobra.Command {
	req := users.DefaultSmokeRequest
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Create, read, update and delete a sample user",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := rt.usersService(cmd.Context())
			if err != nil {
				return err
			}
			return users.RunSmoke(cmd.Context(), svc, cmd.OutOrStdout(), req)
		},
	}
	cmd.Flags().StringVar(&req.UID, "uid", req.UID, "uid of the sample user")
	cmd.Flags().StringVar(&req.Email, "email", req.Email, "Email of the sample user")
	cmd.Flags().StringVar(&req.PhoneNumber, "phone", req.PhoneNumber, "Phone number of the sample user")
	cmd.Flags().StringVar(&req.DisplayName, "display-name", req.DisplayName, "Display name set by the update step")
	return cmd
}

// userFlags are the editable user fields. Only flags given on the command line
// are sent.
type userFlags struct {
	uid           string
	email         string
	phone         string
	password      string
	displayName   string
	photoURL      string
	emailVerified bool
	disabled      bool
}

func (f *userFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Email address")
	cmd.Flags().StringVar(&f.phone, "phone", "", "E.164 phone number")
	cmd.Flags().StringVar(&f.password, "password", "", "Password")
	cmd.Flags().StringVar(&f.displayName, "display-name", "", "Display name")
	cmd.Flags().StringVar(&f.photoURL, "photo-url", "", "Photo URL")
	cmd.Flags().BoolVar(&f.emailVerified, "email-verified", false, "Mark the email address verified")
	cmd.Flags().BoolVar(&f.disabled, "disabled", false, "Disable the account")
}

func (f *userFlags) createRequest(cmd *cobra.Command) users.CreateRequest {
	changed := cmd.Flags().Changed
	var req users.CreateRequest
	if changed("uid") {
		req.UID = users.String(f.uid)
	}
	if changed("email") {
		req.Email = users.String(f.email)
	}
	if changed("phone") {
		req.PhoneNumber = users.String(f.phone)
	}
	if changed("password") {
		req.Password = users.String(f.password)
	}
	if changed("display-name") {
		req.DisplayName = users.String(f.displayName)
	}
	if changed("photo-url") {
		req.PhotoURL = users.String(f.photoURL)
	}
	if changed("email-verified") {
		req.EmailVerified = users.Bool(f.emailVerified)
	}
	if changed("disabled") {
		req.Disabled = users.Bool(f.disabled)
	}
	return req
}

func (f *userFlags) updateRequest(cmd *cobra.Command) (users.UpdateRequest, bool) {
	create := f.createRequest(cmd)
	req := users.UpdateRequest{
		Email:         create.Email,
		PhoneNumber:   create.PhoneNumber,
		Password:      create.Password,
		DisplayName:   create.DisplayName,
		PhotoURL:      create.PhotoURL,
		EmailVerified: create.EmailVerified,
		Disabled:      create.Disabled,
	}
	return req, req != (users.UpdateRequest{})
}

func printUser(w io.Writer, message string, record *users.UserRecord) error {
	fmt.Fprintf(w, "%s: %s\n", message, record.UID)
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}
