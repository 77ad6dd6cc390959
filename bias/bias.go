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

package bias

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/openevs/evs-recorder/device"
)

var ErrNoneSelected = errors.New("no bias selected")

var stepOptions = []int{1, 5, 10, 20, 50}

// Range assumed for biases the driver reports no info for.
const (
	defaultMin = 0
	defaultMax = 255
)

// Controller drives a device's bias facility: selection, step cycling and
// range-clamped writes. Its lifetime is tied to one open device; callers
// serialize access.
type Controller struct {
	facility  device.BiasFacility
	selected  string
	stepIndex int
}

func NewController(facility device.BiasFacility) *Controller {
	return &Controller{facility: facility}
}

// Step returns the current adjustment step size.
func (c *Controller) Step() int {
	return stepOptions[c.stepIndex]
}

// StepIndex returns the position in the step table, so the step size can
// outlive the controller (it survives camera off/on while the selection
// does not).
func (c *Controller) StepIndex() int {
	return c.stepIndex
}

// SetStepIndex restores a step table position saved from StepIndex.
func (c *Controller) SetStepIndex(index int) {
	if index < 0 || index >= len(stepOptions) {
		return
	}
	c.stepIndex = index
}

// CycleStep moves the step size up or down the fixed step table.
func (c *Controller) CycleStep(direction int) {
	c.stepIndex = NextStepIndex(c.stepIndex, direction)
	log.Printf("bias step set to %d", stepOptions[c.stepIndex])
}

// NextStepIndex moves a step table position one slot up or down, stopping
// at the table edges.
func NextStepIndex(index, direction int) int {
	next := index + direction
	if next < 0 {
		return 0
	}
	if next >= len(stepOptions) {
		return len(stepOptions) - 1
	}
	return next
}

// StepValue returns the step size at a step table position.
func StepValue(index int) int {
	if index < 0 || index >= len(stepOptions) {
		return stepOptions[0]
	}
	return stepOptions[index]
}

// Select picks the bias that Adjust and PrintSelected operate on.
func (c *Controller) Select(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("bias name is empty")
	}
	if _, ok := c.facility.All()[name]; !ok {
		return fmt.Errorf("%q: %w", name, device.ErrBiasNotFound)
	}
	c.selected = name
	log.Printf("selected bias set to %q", name)
	return nil
}

// List logs every bias with its current value, in name order. With verbose
// set it adds range, description, category and mutability. If nothing is
// selected yet the first bias becomes the selection.
func (c *Controller) List(verbose bool) {
	all := c.facility.All()
	if len(all) == 0 {
		log.Print("no biases reported by the camera")
		return
	}

	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)

	log.Print("available biases:")
	for _, name := range names {
		line := fmt.Sprintf("  - %s = %d", name, all[name])
		if verbose {
			if info, ok := c.facility.Info(name); ok {
				line += fmt.Sprintf(" | range=%d..%d", info.Min, info.Max)
				if info.Description != "" {
					line += " | desc=" + info.Description
				}
				if info.Category != "" {
					line += " | category=" + info.Category
				}
				line += fmt.Sprintf(" | modifiable=%v", info.Modifiable)
			} else {
				line += " | info=unavailable"
			}
		}
		log.Print(line)
	}

	if c.selected == "" {
		c.selected = names[0]
	}
	log.Printf("selected bias: %s | step=%d %v", c.selected, c.Step(), stepOptions)
}

// Set writes an absolute bias value, clamped into the driver-reported range.
func (c *Controller) Set(name string, value int) error {
	info, ok := c.facility.Info(name)
	if !ok {
		return fmt.Errorf("%q: %w", name, device.ErrBiasNotFound)
	}
	if !info.Modifiable {
		return fmt.Errorf("%q: %w", name, device.ErrBiasReadOnly)
	}

	clamped := clamp(value, info)
	if clamped != value {
		log.Printf("bias %q clamped to %d within range [%d, %d]", name, clamped, info.Min, info.Max)
	}
	if !c.facility.Set(name, clamped) {
		return fmt.Errorf("%q = %d: %w", name, clamped, device.ErrBiasWriteFailed)
	}
	log.Printf("applied bias %q = %d", name, clamped)
	return nil
}

// Adjust moves the selected bias by direction (+1 or -1) times the current
// step. The delta base is re-read from the driver so the step applies to
// the value the sensor actually holds.
func (c *Controller) Adjust(direction int) error {
	if c.selected == "" {
		return ErrNoneSelected
	}
	current, ok := c.facility.All()[c.selected]
	if !ok {
		return fmt.Errorf("%q: %w", c.selected, device.ErrBiasNotFound)
	}

	info, haveInfo := c.facility.Info(c.selected)
	if haveInfo && !info.Modifiable {
		return fmt.Errorf("%q: %w", c.selected, device.ErrBiasReadOnly)
	}
	if !haveInfo {
		info = device.BiasInfo{Min: defaultMin, Max: defaultMax, Modifiable: true}
	}

	requested := current + direction*c.Step()
	clamped := clamp(requested, info)
	if !c.facility.Set(c.selected, clamped) {
		return fmt.Errorf("%q = %d: %w", c.selected, clamped, device.ErrBiasWriteFailed)
	}

	updated := c.facility.Get(c.selected)
	if clamped != requested {
		log.Printf("bias %q updated: %d -> %d (requested %d, clamped to %d)",
			c.selected, current, updated, requested, clamped)
	} else {
		log.Printf("bias %q updated: %d -> %d", c.selected, current, updated)
	}
	return nil
}

// PrintSelected logs the selected bias with its current value and step.
func (c *Controller) PrintSelected() error {
	if c.selected == "" {
		return ErrNoneSelected
	}
	value, ok := c.facility.All()[c.selected]
	if !ok {
		return fmt.Errorf("%q: %w", c.selected, device.ErrBiasNotFound)
	}
	log.Printf("selected bias: %s = %d | step=%d", c.selected, value, c.Step())
	return nil
}

// PrintAll logs every bias with its current value.
func (c *Controller) PrintAll() {
	all := c.facility.All()
	if len(all) == 0 {
		log.Print("no biases reported by the camera")
		return
	}
	names := make([]string, 0, len(all))
	for name := range all {
		names = append(names, name)
	}
	sort.Strings(names)
	log.Print("current biases:")
	for _, name := range names {
		log.Printf("  - %s = %d", name, all[name])
	}
}

func clamp(value int, info device.BiasInfo) int {
	if value < info.Min {
		return info.Min
	}
	if value > info.Max {
		return info.Max
	}
	return value
}
