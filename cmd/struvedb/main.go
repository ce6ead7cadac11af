package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/adfharrison1/struvedb/pkg/collection"
	"github.com/adfharrison1/struvedb/pkg/domain"
	"github.com/adfharrison1/struvedb/pkg/storage"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatalf("ERROR: %v", err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "struvedb",
		Usage: "Embedded document store for typed records keyed by UUID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Aliases: []string{"b"},
				Usage:   "Storage backend (memory, dir, file, badger)",
				Value:   domain.BackendSingleFile.String(),
				EnvVars: []string{"STRUVEDB_BACKEND"},
			},
			&cli.StringFlag{
				Name:    "path",
				Aliases: []string{"p"},
				Usage:   "File or directory holding the collection",
				Value:   "users.col",
				EnvVars: []string{"STRUVEDB_PATH"},
			},
			&cli.IntFlag{
				Name:  "increment",
				Usage: "Slot growth increment in bytes (file backend)",
				Value: storage.DefaultByteLengthIncrement,
			},
			&cli.IntFlag{
				Name:  "slot-size",
				Usage: "Initial slot size in bytes (file backend)",
				Value: storage.DefaultInitialSlotSize,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "add",
				Usage:  "Add a user",
				Action: addCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Aliases:  []string{"e"},
						Usage:    "E-mail address, unique across users",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Display name",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "inactive",
						Usage: "Create the user as inactive",
					},
				},
			},
			{
				Name:   "list",
				Usage:  "List users in insertion order",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "active",
						Usage: "Only list active users",
					},
				},
			},
			{
				Name:      "get",
				Usage:     "Show a user by UUID or e-mail",
				ArgsUsage: "<uuid|email>",
				Action:    getCommand,
			},
			{
				Name:      "rename",
				Usage:     "Change the name of a user",
				ArgsUsage: "<uuid>",
				Action:    renameCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "New display name",
						Required: true,
					},
				},
			},
			{
				Name:      "remove",
				Usage:     "Remove a user",
				ArgsUsage: "<uuid>",
				Action:    removeCommand,
			},
			{
				Name:   "export",
				Usage:  "Write a compressed snapshot of the collection",
				Action: exportCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "out",
						Aliases:  []string{"o"},
						Usage:    "Snapshot file (" + storage.FileExtension + ")",
						Required: true,
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Insert every user of a snapshot into the collection",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "in",
						Aliases:  []string{"i"},
						Usage:    "Snapshot file (" + storage.FileExtension + ")",
						Required: true,
					},
				},
			},
		},
	}
}

func openCollection(c *cli.Context) (*collection.Collection[User], error) {
	kind, err := domain.ParseBackendKind(c.String("backend"))
	if err != nil {
		return nil, err
	}
	return collection.New[User](
		collection.WithBackend(kind),
		collection.WithPath(c.String("path")),
		collection.WithByteLengthIncrement(c.Int("increment")),
		collection.WithInitialSlotSize(c.Int("slot-size")),
	)
}

func openStore(c *cli.Context) (*collection.Store[User], error) {
	coll, err := openCollection(c)
	if err != nil {
		return nil, err
	}
	return collection.NewStore(coll), nil
}

func keyArg(c *cli.Context) (uuid.UUID, error) {
	if c.NArg() != 1 {
		return uuid.Nil, fmt.Errorf("expected exactly one argument, got %d", c.NArg())
	}
	key, err := uuid.Parse(c.Args().First())
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid %q: %w", c.Args().First(), err)
	}
	return key, nil
}

func printUser(c *cli.Context, u User) {
	status := "active"
	if !u.Active {
		status = "inactive"
	}
	fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\t%s\t%s\n", u.UUID, u.Email, u.Name, status, u.CreatedAt.Format(time.RFC3339))
}

func addCommand(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	u := User{
		UUID:      uuid.New(),
		Email:     strings.TrimSpace(c.String("email")),
		Name:      c.String("name"),
		Active:    !c.Bool("inactive"),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.Insert(c.Context, u); err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}
	fmt.Fprintln(c.App.Writer, u.UUID)
	return nil
}

func listCommand(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	onlyActive := c.Bool("active")
	for _, u := range store.Filter(func(u User) bool { return !onlyActive || u.Active }) {
		printUser(c, u)
	}
	return nil
}

func getCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one argument, got %d", c.NArg())
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	arg := c.Args().First()
	var (
		u  User
		ok bool
	)
	if key, err := uuid.Parse(arg); err == nil {
		u, ok = store.ByPrimaryKey(key)
	} else {
		u, ok = store.Find(func(u User) bool { return strings.EqualFold(u.Email, arg) })
	}
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, arg)
	}
	printUser(c, u)
	return nil
}

func renameCommand(c *cli.Context) error {
	key, err := keyArg(c)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	u, ok := store.ByPrimaryKey(key)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrKeyNotFound, key)
	}
	u.Name = c.String("name")
	if err := store.Update(c.Context, u); err != nil {
		return fmt.Errorf("failed to rename user: %w", err)
	}
	return nil
}

func removeCommand(c *cli.Context) error {
	key, err := keyArg(c)
	if err != nil {
		return err
	}
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(c.Context, key); err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}
	return nil
}

func exportCommand(c *cli.Context) error {
	store, err := openStore(c)
	if err != nil {
		return err
	}
	defer store.Close()

	out := c.String("out")
	if err := store.SaveSnapshot(out); err != nil {
		return err
	}
	log.Printf("INFO: Exported %d users to %s", store.Len(), out)
	return nil
}

func importCommand(c *cli.Context) error {
	coll, err := openCollection(c)
	if err != nil {
		return err
	}
	defer coll.Close()

	f, err := os.Open(c.String("in"))
	if err != nil {
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	n, err := coll.Restore(f)
	log.Printf("INFO: Imported %d users from %s", n, c.String("in"))
	return err
}
