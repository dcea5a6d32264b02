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

// TransformMain is wrapped by NewTransformCommand and only exported for
// testing purposes.
var TransformMain *colltask.TransformMain

// NewTransformCommand returns a new cobra command wrapping TransformMain.
func NewTransformCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	TransformMain = colltask.NewTransformMain()
	transformCommand := &cobra.Command{
		Use:   "transform-resources",
		Short: "transform-resources - run the transform engine over the collection's resources",
		Long: `Builds the canonical task list for the collection, skips resources whose
fingerprint is already up to date, windows the list to this shard's offset
and limit, and runs the transform engine over the remaining tasks in
parallel. Exits non-zero if any task failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if TransformMain.CodeVersion == "" {
				TransformMain.CodeVersion = Version
			}
			start := time.Now()
			err := TransformMain.Run()
			if err != nil {
				return err
			}
			log.Infof("Processing complete! (%v)", time.Since(start))
			return nil
		},
	}
	flags := transformCommand.Flags()
	err := commandeer.Flags(flags, TransformMain)
	if err != nil {
		panic(err)
	}
	return transformCommand
}

func init() {
	subcommandFns["transform-resources"] = NewTransformCommand
}
