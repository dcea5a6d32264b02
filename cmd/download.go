// Copyright 2024 Geopub Ltd.
//
// Redistribution and use in source and binary forms, with or without
// modification, are permitted provided that the following conditions
// are met:
//
// 1. Redistributions of source code must retain the above copyright
// notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright
// notice, this list of conditions and the following disclaimer in the
// documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its
// contributors may be used to endorse or promote products derived
// from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND
// CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES,
// INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF
// MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE
// DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR
// CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL,
// SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING,
// BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR
// SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS
// INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY,
// WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING
// NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE
// OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH
// DAMAGE.

package cmd

import (
	"io"
	"time"

	"github.com/jaffee/commandeer"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/geopub/colltask"
)

// DownloadMain is wrapped by NewDownloadCommand and only exported for testing
// purposes.
var DownloadMain *colltask.DownloadMain

// NewDownloadCommand returns a new cobra command wrapping DownloadMain.
func NewDownloadCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	DownloadMain = colltask.NewDownloadMain()
	downloadCommand := &cobra.Command{
		Use:   "download-resources",
		Short: "download-resources - download raw resources from object storage or HTTP(S)",
		Long:  `Downloads the raw resource files for a window of the collection's transformation tasks. Either --bucket or --base-url must be provided.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			err := DownloadMain.Run()
			if err != nil {
				return err
			}
			log.Infof("Download complete! (%v)", time.Since(start))
			return nil
		},
	}
	flags := downloadCommand.Flags()
	err := commandeer.Flags(flags, DownloadMain)
	if err != nil {
		panic(err)
	}
	return downloadCommand
}

func init() {
	subcommandFns["download-resources"] = NewDownloadCommand
}
