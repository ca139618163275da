// Command rencfs mounts an encrypted virtual filesystem backed by a local
// data directory: a thin flag-parsing main that hands off to a mount
// helper.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/vajiraw/rencfs/config"
	"github.com/vajiraw/rencfs/crypto"
)

var (
	dataDir    = flag.String("data-dir", "", "directory holding the encrypted filesystem")
	mountPoint = flag.String("mount-point", "", "local path to mount the filesystem at")
	changePass = flag.Bool("change-password", false, "rotate the passphrase and exit without mounting")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("rencfs: ")
	flag.Parse()

	if *dataDir == "" || *mountPoint == "" {
		fmt.Fprintln(os.Stderr, "usage: rencfs -data-dir DIR -mount-point DIR")
		os.Exit(2)
	}

	pw := &stdinPasswordProvider{}
	cipher := crypto.DefaultCipher{}
	cfg := config.Default()

	if *changePass {
		old, ok := pw.Password(context.Background())
		if !ok {
			log.Fatal("no current password supplied")
		}
		fmt.Print("new password: ")
		next, err := readLine()
		if err != nil {
			log.Fatalf("read new password: %v", err)
		}
		if err := rotatePassword(*dataDir, cipher, old, next); err != nil {
			log.Fatalf("change password: %v", err)
		}
		log.Println("password changed")
		return
	}

	if err := mount(*dataDir, *mountPoint, pw, cipher, cfg); err != nil {
		log.Fatalf("mount: %v", err)
	}
}
