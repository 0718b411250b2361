// Command grant-admin sets the admin custom claim on a Firebase user.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"google.golang.org/api/option"

	"storefront-api/auth"
	"storefront-api/models"
)

const adminClaim = auth.AdminClaim

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	var credentials, email, uid string

	flagSet := pflag.NewFlagSet("grant-admin", pflag.ContinueOnError)
	flagSet.StringVar(&credentials, "credentials", "", "path to the service account JSON file")
	flagSet.StringVar(&email, "email", "", "email of the user to promote")
	flagSet.StringVar(&uid, "uid", "", "uid of the user to promote")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if err := checkFlags(credentials, email, uid, flagSet.Args()); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentials))
	if err != nil {
		return errors.Wrap(err, "initialize firebase app")
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return errors.Wrap(err, "initialize firebase auth")
	}

	var user *firebaseauth.UserRecord
	if uid != "" {
		user, err = client.GetUser(ctx, uid)
	} else {
		user, err = client.GetUserByEmail(ctx, email)
	}
	if err != nil {
		return errors.Wrap(err, "look up user")
	}

	claims, changed := withAdminClaim(user.CustomClaims)
	if !changed {
		fmt.Printf("%s (%s) is already an admin\n", user.Email, user.UID)
		return nil
	}
	if err := client.SetCustomUserClaims(ctx, user.UID, claims); err != nil {
		return errors.Wrap(err, "set custom claims")
	}
	fmt.Printf("granted admin to %s (%s); the user must sign in again to refresh the token\n", user.Email, user.UID)
	return nil
}

func checkFlags(credentials, email, uid string, rest []string) error {
	switch {
	case len(rest) > 0:
		return errors.Errorf("unexpected argument: %s", rest[0])
	case credentials == "":
		return errors.New("--credentials is required")
	case email == "" && uid == "":
		return errors.New("one of --email or --uid is required")
	case email != "" && uid != "":
		return errors.New("--email and --uid are mutually exclusive")
	}
	return nil
}

// withAdminClaim returns existing merged with admin=true, and whether that
// changed anything.
func withAdminClaim(existing map[string]interface{}) (map[string]interface{}, bool) {
	if auth.RoleFromClaims(existing) == models.RoleAdmin {
		return existing, false
	}
	claims := make(map[string]interface{}, len(existing)+1)
	for k, v := range existing {
		claims[k] = v
	}
	claims[adminClaim] = true
	return claims, true
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `grant-admin sets the custom claim admin=true on a Firebase user.

Usage:
  grant-admin --credentials <file> (--email <email> | --uid <uid>)

Flags:
%s`, flagSet.FlagUsages())
}
