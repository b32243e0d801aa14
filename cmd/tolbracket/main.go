// Command tolbracket runs a single-elimination tournament ledger node and
// talks to one from the command line.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/tolelom/tolbracket/internal/cli"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/tolbracket/vm/modules/economy"
	_ "github.com/tolelom/tolbracket/vm/modules/tournament"
)

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
		PadLevelText:  true,
	})
	logrus.SetLevel(logrus.InfoLevel)

	root := cli.Root()
	root.SetArgs(os.Args[1:])
	if err := root.Execute(); err != nil {
		logrus.Fatal(err)
	}
}
