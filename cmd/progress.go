package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/pot-code/enlingo/internal/course"
	"github.com/pot-code/enlingo/internal/infrastructure/driver"
	"github.com/spf13/cobra"
)

func newProgressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "progress [flags]",
		Short: "Print the saved course selection and progression of every course",
		Long: `progress reads the key-value store configured by the kv.* flags and prints
what the tracker would restore on startup. Curriculum bounds are not checked.`,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE:               runProgress,
	}
}

func runProgress(cmd *cobra.Command, args []string) error {
	option, err := loadConfig(args)
	if err != nil || option == nil {
		return err
	}

	kv, err := driver.GetKVStore(&driver.KVConfig{
		Driver:   option.KVStore.Driver,
		Host:     option.KVStore.Host,
		Port:     option.KVStore.Port,
		Password: option.KVStore.Password,
		Path:     option.KVStore.Path,
	})
	if err != nil {
		return fmt.Errorf("failed to create kv store: %w", err)
	}
	defer kv.Close()

	ctx := cmd.Context()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()

	active, err := kv.Get(ctx, course.ActiveCourseKey)
	switch {
	case errors.Is(err, driver.ErrKeyNotFound):
		fmt.Fprintf(w, "active course\t(not saved)\n")
	case err != nil:
		return err
	case active == "":
		fmt.Fprintf(w, "active course\t(cleared)\n")
	default:
		fmt.Fprintf(w, "active course\t%s\n", active)
	}

	for _, id := range course.SupportedCourses() {
		raw, err := kv.Get(ctx, course.ProgressionKey(id))
		if errors.Is(err, driver.ErrKeyNotFound) {
			fmt.Fprintf(w, "%s\t(not saved)\n", id)
			continue
		}
		if err != nil {
			return err
		}
		p, err := course.DecodeProgression([]byte(raw))
		if err != nil {
			fmt.Fprintf(w, "%s\tmalformed %q: %v\n", id, raw, err)
			continue
		}
		fmt.Fprintf(w, "%s\tsection %d, chapter %d, lesson %d, exercise %d\n",
			id, p.SectionIdx, p.ChapterIdx, p.LessonIdx, p.ExerciseIdx)
	}
	return nil
}
