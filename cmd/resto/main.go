// Command resto is a terminal client for the restaurant ordering backend.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	appkg "github.com/xenking/resto-client/internal/app"
)

const usage = `usage: resto <command> [flags] [args]

Customer:
  login -email E -password P     sign in
  register -name N -email E -password P
  google -credential C           sign in with a Google ID credential
  logout                         sign out and drop the cart
  whoami                         show the signed-in identities
  restaurants                    list restaurants
  select ID                      choose the restaurant to order from
  menu [ID]                      show the menu (selected restaurant by default)
  add [-note T] [-addon NAME]... ITEM
  remove ITEM
  qty ITEM N
  cart                           show the cart
  checkout -payment P -delivery D [-address A]
  update                         replace the active order with the cart
  cancel                         cancel the active order
  complete                       mark the active order as received

Admin:
  admin-login -email E -password P
  admin-logout
  dashboard [-days N]            revenue, order stats and best sellers

Other:
  doctor                         check backend and storage connectivity

State is kept between commands in RESTO_STORAGE_DRIVER (sqlite by default,
or postgres/redis); RESTO_STORAGE_NAMESPACE selects a profile.
`

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "help" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	name, args := os.Args[1], os.Args[2:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}
		if cfg.Storage.Driver == appkg.DriverMemory {
			return errors.New("storage driver memory loses state between commands: use sqlite, postgres or redis")
		}
		c, err := appkg.New(ctx, cfg, appkg.Options{
			TracerProvider: m.TracerProvider(),
			MeterProvider:  m.MeterProvider(),
		})
		if err != nil {
			return errors.Wrap(err, "init client")
		}
		defer c.Close()

		if err := cmd(ctx, c, args); err != nil {
			return errors.Wrap(err, name)
		}
		return nil
	})
}
