// Command admin creates an administrator account directly in the
// configured storage. The HTTP API only lets administrators register
// users, so the first account has to come from here.
//
// Usage:
//
//	admin -name "Síndico" -apartment 101 [-generate] [server flags]
//
// Server flags (-d, -c, ...) select the database the same way they do for
// the server binary.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/dmitrijs2005/zeladoria/internal/common"
	"github.com/dmitrijs2005/zeladoria/internal/flagx"
	"github.com/dmitrijs2005/zeladoria/internal/server"
	"github.com/dmitrijs2005/zeladoria/internal/server/config"
	"golang.org/x/term"
)

var adminFlags = []string{"-name", "-apartment", "-generate"}

func main() {
	if err := run(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		name      string
		apartment string
		generate  bool
	)

	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	fs.StringVar(&name, "name", "", "administrator name")
	fs.StringVar(&apartment, "apartment", "", "administrator apartment")
	fs.BoolVar(&generate, "generate", false, "generate a random password and print it")
	if err := fs.Parse(flagx.FilterArgs(os.Args[1:], adminFlags)); err != nil {
		return err
	}

	if name == "" || apartment == "" {
		return errors.New("-name and -apartment are required")
	}

	password, err := readPassword(generate)
	if err != nil {
		return err
	}

	app, err := server.NewApp(ctx, config.LoadConfig())
	if err != nil {
		return err
	}
	defer app.Close()

	u, err := app.Users().BootstrapAdmin(ctx, name, password, apartment)
	if err != nil {
		return fmt.Errorf("create admin: %s", common.MessageOf(err))
	}

	fmt.Printf("administrator %q created with id %d\n", u.Name, u.ID)
	if generate {
		fmt.Printf("password: %s\n", password)
	}
	return nil
}

func readPassword(generate bool) (string, error) {
	if generate {
		return common.MakeRandHexString(12)
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Print("Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Print("Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		common.WipeByteArray(first)
		return "", fmt.Errorf("read password: %w", err)
	}
	return confirmPassword(first, second)
}

// confirmPassword compares the two entries and zeroes both buffers.
func confirmPassword(first, second []byte) (string, error) {
	defer common.WipeByteArray(first)
	defer common.WipeByteArray(second)

	if !bytes.Equal(first, second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
