// Command mihomo-ctl supervises a Mihomo proxy-core binary: profile
// and subscription management, WebDAV sync, core version management,
// and the admin HTTP API the web UIs drive.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/zhugenanbei181/music-frog-sub001/cmd"
)

func main() {
	root := cmd.NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "mihomo-ctl:", err)
		os.Exit(1)
	}
}
