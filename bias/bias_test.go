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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openevs/evs-recorder/device"
)

type setCall struct {
	name  string
	value int
}

type fakeFacility struct {
	values    map[string]int
	info      map[string]device.BiasInfo
	rejectSet bool
	sets      []setCall
}

func newFakeFacility() *fakeFacility {
	return &fakeFacility{
		values: map[string]int{
			"bias_diff": 69,
			"bias_hpf":  30,
			"bias_refr": 45,
		},
		info: map[string]device.BiasInfo{
			"bias_diff": {Min: 0, Max: 100, Modifiable: true},
			"bias_hpf":  {Min: 10, Max: 200, Modifiable: true},
			"bias_refr": {Min: 0, Max: 255, Modifiable: false},
		},
	}
}

func (f *fakeFacility) All() map[string]int {
	all := make(map[string]int, len(f.values))
	for name, value := range f.values {
		all[name] = value
	}
	return all
}

func (f *fakeFacility) Info(name string) (device.BiasInfo, bool) {
	info, ok := f.info[name]
	return info, ok
}

func (f *fakeFacility) Get(name string) int { return f.values[name] }

func (f *fakeFacility) Set(name string, value int) bool {
	f.sets = append(f.sets, setCall{name, value})
	if f.rejectSet {
		return false
	}
	f.values[name] = value
	return true
}

func TestSetClampsToReportedRange(t *testing.T) {
	f := newFakeFacility()
	c := NewController(f)

	require.NoError(t, c.Set("bias_diff", 150))

	// The driver must be invoked with the clamped value, not 150.
	require.Len(t, f.sets, 1)
	assert.Equal(t, setCall{"bias_diff", 100}, f.sets[0])
	assert.Equal(t, 100, f.values["bias_diff"])
}

func TestSetClampsLowEnd(t *testing.T) {
	f := newFakeFacility()
	c := NewController(f)

	require.NoError(t, c.Set("bias_hpf", 3))
	assert.Equal(t, setCall{"bias_hpf", 10}, f.sets[0])
}

func TestSetErrors(t *testing.T) {
	f := newFakeFacility()
	c := NewController(f)

	assert.ErrorIs(t, c.Set("bias_nope", 1), device.ErrBiasNotFound)
	assert.ErrorIs(t, c.Set("bias_refr", 1), device.ErrBiasReadOnly)

	f.rejectSet = true
	assert.ErrorIs(t, c.Set("bias_diff", 50), device.ErrBiasWriteFailed)
}

func TestSelect(t *testing.T) {
	c := NewController(newFakeFacility())

	assert.ErrorIs(t, c.Select("bias_nope"), device.ErrBiasNotFound)
	assert.Error(t, c.Select("   "))
	require.NoError(t, c.Select(" bias_diff "))
	require.NoError(t, c.PrintSelected())
}

func TestAdjustReReadsCurrentValue(t *testing.T) {
	f := newFakeFacility()
	c := NewController(f)
	require.NoError(t, c.Select("bias_diff"))

	require.NoError(t, c.Adjust(1))
	assert.Equal(t, 70, f.values["bias_diff"])

	// Another process moved the bias; the next step starts from the
	// value the driver reports now.
	f.values["bias_diff"] = 90
	require.NoError(t, c.Adjust(1))
	assert.Equal(t, 91, f.values["bias_diff"])
}

func TestAdjustClampsAtRangeEdge(t *testing.T) {
	f := newFakeFacility()
	f.values["bias_diff"] = 98
	c := NewController(f)
	require.NoError(t, c.Select("bias_diff"))

	c.CycleStep(1) // step 5
	require.NoError(t, c.Adjust(1))
	assert.Equal(t, 100, f.values["bias_diff"])
}

func TestAdjustErrors(t *testing.T) {
	f := newFakeFacility()
	c := NewController(f)

	assert.ErrorIs(t, c.Adjust(1), ErrNoneSelected)
	assert.ErrorIs(t, c.PrintSelected(), ErrNoneSelected)

	require.NoError(t, c.Select("bias_refr"))
	assert.ErrorIs(t, c.Adjust(1), device.ErrBiasReadOnly)
}

func TestCycleStepStaysInTable(t *testing.T) {
	c := NewController(newFakeFacility())

	assert.Equal(t, 1, c.Step())
	c.CycleStep(-1)
	assert.Equal(t, 1, c.Step())

	for i := 0; i < 10; i++ {
		c.CycleStep(1)
	}
	assert.Equal(t, 50, c.Step())

	c.CycleStep(-1)
	assert.Equal(t, 20, c.Step())
}

func TestListSelectsFirstBias(t *testing.T) {
	c := NewController(newFakeFacility())
	c.List(true)
	require.NoError(t, c.PrintSelected())
	assert.Equal(t, "bias_diff", c.selected)
}
