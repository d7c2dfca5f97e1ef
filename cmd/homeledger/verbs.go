package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"

	"github.com/cuemby/homeledger/pkg/api"
	"github.com/cuemby/homeledger/pkg/config"
	"github.com/cuemby/homeledger/pkg/errs"
	"github.com/cuemby/homeledger/pkg/ledgerdb"
	"github.com/cuemby/homeledger/pkg/log"
	"github.com/cuemby/homeledger/pkg/refdata"
	"github.com/cuemby/homeledger/pkg/storage"
	"github.com/cuemby/homeledger/pkg/types"
)

func jsonSource() storage.BucketSource {
	return storage.NewJSONSource()
}

func binarySource(keyFile string) (storage.BucketSource, error) {
	key, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, errs.Wrap(errs.IO, "read AES key file", err)
	}
	return storage.NewBinarySource(key)
}

func parseDate(raw string) (types.KeyDate, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errs.Wrap(errs.InvalidInput, "invalid date", err)
	}
	return types.KeyDate(v), nil
}

// runTest implements the test_json/test verbs: load the store, print
// date's per-account balance changes, then the cache's active-item
// count, mirroring the original test/test_lru diagnostics.
func runTest(root, dateStr string, source storage.BucketSource, cfg config.Config) error {
	date, err := parseDate(dateStr)
	if err != nil {
		return err
	}

	l, err := ledgerdb.Open(root, source, cfg.MaxActiveItems)
	if err != nil {
		return err
	}
	defer l.Close()

	_, changes, err := l.OpsAndChanges(date)
	if err != nil {
		return err
	}

	fmt.Println(int64(date))
	if err := printChanges(changes, l.Accounts); err != nil {
		return err
	}
	fmt.Println(l.ActiveItems())
	return nil
}

func printChanges(changes *types.FinanceChanges, accounts *refdata.Accounts) error {
	all := changes.All()
	ids := make([]uint64, 0, len(all))
	for account := range all {
		ids = append(ids, uint64(account))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		c := all[types.AccountID(id)]
		acc, err := accounts.Get(types.AccountID(id))
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d %d %d %d\n", acc.Name, c.StartBalance, c.Income, c.Expenditure, c.EndBalance())
	}
	return nil
}

// runMigrate loads every bucket under sourceRoot and re-saves it through
// the other provider, chosen by inspecting sourceRoot/dates's shape:
// directories mean JSON buckets, flat files mean binary ones. Refuses to
// overwrite an already-populated destination unless force is set.
func runMigrate(dest, sourceRoot, aesKeyFile string, force bool, cfg config.Config) error {
	if !force {
		nonEmpty, err := destHasData(dest)
		if err != nil {
			return err
		}
		if nonEmpty {
			return errs.New(errs.InvalidInput, "destination already contains data; pass --force to overwrite")
		}
	}

	sourceIsJSON, err := sourceDatesAreDirectories(sourceRoot)
	if err != nil {
		return err
	}

	key, err := os.ReadFile(aesKeyFile)
	if err != nil {
		return errs.Wrap(errs.IO, "read AES key file", err)
	}

	var sourceProvider, destProvider storage.BucketSource
	if sourceIsJSON {
		sourceProvider = storage.NewJSONSource()
		destProvider, err = storage.NewBinarySource(key)
	} else {
		sourceProvider, err = storage.NewBinarySource(key)
		destProvider = storage.NewJSONSource()
	}
	if err != nil {
		return err
	}

	log.Logger.Info().Str("source", sourceRoot).Str("dest", dest).Str("source_provider", sourceProvider.Name()).Str("dest_provider", destProvider.Name()).Msg("starting migration")

	l, err := ledgerdb.Open(sourceRoot, sourceProvider, cfg.MaxActiveItems)
	if err != nil {
		return err
	}
	defer l.Close()

	if err := l.Migrate(dest, destProvider); err != nil {
		return err
	}

	log.Logger.Info().Msg("migration complete")
	return nil
}

// destHasData reports whether dest/dates already contains any entries.
func destHasData(dest string) (bool, error) {
	entries, err := os.ReadDir(filepath.Join(dest, "dates"))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errs.Wrap(errs.IO, "read destination dates directory", err)
	}
	return len(entries) > 0, nil
}

func sourceDatesAreDirectories(sourceRoot string) (bool, error) {
	entries, err := os.ReadDir(filepath.Join(sourceRoot, "dates"))
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, errs.Wrap(errs.IO, "read source dates directory", err)
	}
	for _, e := range entries {
		return e.IsDir(), nil
	}
	return true, nil
}

// runServer starts the API server on port using rsaKeyFile for TLS and
// blocks until interrupted.
func runServer(root, port, rsaKeyFile string, cfg config.Config) error {
	source := storage.BucketSource(storage.NewJSONSource())
	if cfg.Provider == config.ProviderBinary {
		return errs.New(errs.Unsupported, "server verb requires the json provider; binary support needs a key argument this CLI form has no slot for")
	}

	l, err := ledgerdb.Open(root, source, cfg.MaxActiveItems)
	if err != nil {
		return err
	}

	srv := api.New(l)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServeTLS(":"+port, rsaKeyFile)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Logger.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			l.Close()
			return err
		}
	}

	return l.Close()
}
