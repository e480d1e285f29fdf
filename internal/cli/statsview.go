package cli

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const (
	statsviewAddr = "localhost:12600"
	statsviewPath = "/debug/statsview"
)

// launchStatsview serves Go runtime charts in the background and returns a
// function that stops the server.
func launchStatsview(output io.Writer) func() {
	viewer.SetConfiguration(viewer.WithAddr(statsviewAddr))
	mgr := statsview.New()
	go mgr.Start()

	fmt.Fprintf(output, "stats server available at http://%s%s\n", statsviewAddr, statsviewPath)
	return mgr.Stop
}
