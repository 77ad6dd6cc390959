// evs-recorder - accumulate event camera output into fixed length frames
//  Copyright (C) 2025, The OpenEVS Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bufio"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/openevs/evs-recorder/session"
)

const helpText = `commands:
  o   turn camera on
  f   turn camera off
  s   start recording
  e   end recording
  b   list biases (B for descriptions)
  n <name>        select a bias
  v <name> <val>  set a bias directly
  +/- adjust selected bias up/down
  ]/[ cycle adjustment step up/down
  p   print selected bias (P for all)
  q   quit
`

// readCommands feeds stdin lines to the command loop. The channel closes
// on EOF so a piped invocation shuts the daemon down cleanly.
func readCommands(r io.Reader, lines chan<- string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	close(lines)
}

func handleLine(sess *session.Controller, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "n", "select":
		if len(fields) != 2 {
			log.Print("usage: n <bias-name>")
			return
		}
		logErr(sess.SelectBias(fields[1]))
	case "v", "set":
		if len(fields) != 3 {
			log.Print("usage: v <bias-name> <value>")
			return
		}
		value, err := strconv.Atoi(fields[2])
		if err != nil {
			log.Printf("bad bias value %q", fields[2])
			return
		}
		logErr(sess.SetBias(fields[1], value))
	case "h", "help", "?":
		log.Print(helpText)
	default:
		if len(fields[0]) == 1 {
			handleKey(sess, rune(fields[0][0]))
			return
		}
		log.Printf("unknown command %q (h for help)", line)
	}
}

func handleKey(sess *session.Controller, key rune) {
	switch key {
	case 'o', 'O':
		logErr(sess.Open())
	case 'f', 'F':
		logErr(sess.Close())
	case 's', 'S':
		logErr(sess.StartRecording())
	case 'e', 'E':
		logErr(sess.StopRecording())
	case 'b':
		logErr(sess.ListBiases(false))
	case 'B':
		logErr(sess.ListBiases(true))
	case '+', '=':
		logErr(sess.AdjustBias(1))
	case '-', '_':
		logErr(sess.AdjustBias(-1))
	case ']':
		sess.CycleBiasStep(1)
	case '[':
		sess.CycleBiasStep(-1)
	case 'p':
		logErr(sess.PrintSelectedBias())
	case 'P':
		logErr(sess.PrintAllBiases())
	case 'h', '?':
		log.Print(helpText)
	case 'q', 'Q':
		log.Print("quit requested")
		sess.Shutdown()
	}
}

func logErr(err error) {
	if err != nil {
		log.Printf("error: %v", err)
	}
}
