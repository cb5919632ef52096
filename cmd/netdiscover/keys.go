package main

import (
	"fmt"
	"os"
	"syscall"

	"github.com/fieldops/netdiscover/internal/config"
	"github.com/fieldops/netdiscover/internal/vault"
	"golang.org/x/term"
)

// credentialNames collects every credential name referenced by the
// current config, so `keys list` can report which ones resolve.
func credentialNames(cfg *config.Config) []string {
	var names []string
	if cfg.EnableSecret.Name != "" {
		names = append(names, cfg.EnableSecret.Name)
	}
	for _, c := range cfg.Credentials.Windows {
		if c.Secret.Name != "" {
			names = append(names, c.Secret.Name)
		}
	}
	for _, c := range cfg.Credentials.SSH {
		if c.Secret.Name != "" {
			names = append(names, c.Secret.Name)
		}
	}
	for _, ref := range cfg.Credentials.SNMPv2cCommunities {
		if ref.Name != "" {
			names = append(names, ref.Name)
		}
	}
	for _, v3 := range cfg.Credentials.SNMPv3 {
		if v3.AuthKey.Name != "" {
			names = append(names, v3.AuthKey.Name)
		}
		if v3.PrivKey.Name != "" {
			names = append(names, v3.PrivKey.Name)
		}
	}
	return names
}

func cmdKeys(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: netdiscover keys <list|set|delete> [name]")
		os.Exit(1)
	}

	v := vault.New()

	switch args[0] {
	case "list":
		cfg, err := config.Load("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
			os.Exit(2)
		}
		present, err := v.List(credentialNames(cfg))
		if err != nil {
			fmt.Fprintf(os.Stderr, "error listing credentials: %v\n", err)
			os.Exit(1)
		}
		if len(present) == 0 {
			fmt.Println("No credential secrets stored")
			return
		}
		for _, name := range present {
			fmt.Printf("  %s: ****\n", name)
		}

	case "set":
		if len(args) < 2 {
			fmt.Println("Usage: netdiscover keys set <name>")
			os.Exit(1)
		}
		name := args[1]
		fmt.Printf("Enter secret for %s: ", name)
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading secret: %v\n", err)
			os.Exit(1)
		}
		if err := v.Set(name, string(secret)); err != nil {
			fmt.Fprintf(os.Stderr, "error storing secret: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Secret for %s stored successfully\n", name)

	case "delete":
		if len(args) < 2 {
			fmt.Println("Usage: netdiscover keys delete <name>")
			os.Exit(1)
		}
		name := args[1]
		if err := v.Delete(name); err != nil {
			fmt.Fprintf(os.Stderr, "error deleting secret: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Secret for %s deleted\n", name)

	default:
		fmt.Fprintf(os.Stderr, "unknown keys command: %s\n", args[0])
		os.Exit(1)
	}
}
