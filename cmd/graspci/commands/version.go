package commands

import (
	"fmt"
	"os"

	"github.com/eegrasp/graspci/internal/pyversion"
	"github.com/eegrasp/graspci/internal/release"
)

// VersionCmd groups the version file commands.
type VersionCmd struct {
	Check VersionCheckCmd `cmd:"" default:"1" help:"Verify the version mirrors agree with the source"`
	Sync  VersionSyncCmd  `cmd:"" help:"Write a version into the source and every mirror"`
}

// VersionCheckCmd implements 'version check'.
type VersionCheckCmd struct{}

func (VersionCheckCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	report := pyversion.Check(cfg.Project.Root, cfg.Version)
	printVersionReport(report)
	if report.Source.Err != nil {
		return report.Source.Err
	}
	if drifted := report.Drifted(); len(drifted) > 0 {
		return pyversion.ErrDrift.WithContext("source", report.Source.Version).WithContext("drifted", len(drifted))
	}
	return nil
}

// VersionSyncCmd implements 'version sync'.
type VersionSyncCmd struct {
	Version string `arg:"" help:"Version or tag to write (1.2.3 or v1.2.3)"`
}

func (s *VersionSyncCmd) Run(_ *Global, root *CLI) error {
	tag, err := release.ParseVersion(s.Version)
	if err != nil {
		return err
	}
	cfg, err := root.LoadConfig()
	if err != nil {
		return err
	}
	report, err := pyversion.Sync(cfg.Project.Root, cfg.Version, tag.Version)
	if report != nil {
		printVersionReport(report)
	}
	return err
}

func printVersionReport(report *pyversion.Report) {
	fmt.Fprintf(os.Stdout, "source  %s\n", report.Source)
	for _, m := range report.Mirrors {
		mark := "ok"
		if m.Err != nil || m.Version != report.Source.Version {
			mark = "DRIFT"
		}
		fmt.Fprintf(os.Stdout, "mirror  %s [%s]\n", m, mark)
	}
}
