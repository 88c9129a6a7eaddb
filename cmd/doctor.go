package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhugenanbei181/music-frog-sub001/internal/platform"
)

// doctorCheck is one startup diagnostic: a name, a func that runs it,
// and whether its failure is fatal to the daemon actually starting.
type doctorCheck struct {
	name  string
	fatal bool
	run   func(b *bootstrap) error
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run startup diagnostics and report what would block `serve`",
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := newBootstrap("doctor")
			if err != nil {
				return err
			}

			checks := []doctorCheck{
				{name: "home directory writable", fatal: true, run: checkHomeWritable},
				{name: "profile store readable", fatal: true, run: checkProfileStore},
				{name: "core binary resolvable", fatal: false, run: checkCoreBinary},
				{name: "admin port free", fatal: false, run: checkAdminPort},
			}

			failed := 0
			for _, c := range checks {
				err := c.run(b)
				status := "ok"
				if err != nil {
					status = "FAIL: " + err.Error()
					if c.fatal {
						failed++
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s\n", status, c.name)
			}
			if failed > 0 {
				os.Exit(1)
			}
			return nil
		},
	}
}

func checkHomeWritable(b *bootstrap) error {
	probe := b.paths.Home() + "/.doctor-probe"
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return err
	}
	return os.Remove(probe)
}

func checkProfileStore(b *bootstrap) error {
	_, err := b.profiles.List()
	return err
}

func checkCoreBinary(b *bootstrap) error {
	if _, ok := b.versions.GetDefault(); !ok {
		return fmt.Errorf("no default core version set; run \"core install\" or configure bundled-core fallback")
	}
	return nil
}

// defaultAdminPort mirrors supervisor's auto-select base; doctor only
// needs to know whether the port the daemon will try first is free,
// not to reserve it.
const defaultAdminPort = 5210

func checkAdminPort(b *bootstrap) error {
	if !platform.PortFree(defaultAdminPort) {
		return fmt.Errorf("port %d is already in use; serve will auto-select the next free one", defaultAdminPort)
	}
	return nil
}
