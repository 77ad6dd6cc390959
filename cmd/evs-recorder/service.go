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
	"errors"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"

	"github.com/openevs/evs-recorder/session"
)

const (
	dbusName = "org.openevs.evsrecorder"
	dbusPath = "/org/openevs/evsrecorder"
)

type service struct {
	sess *session.Controller
}

func startService(sess *session.Controller) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}

	s := &service{
		sess: sess,
	}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")

	return nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

// StartRecording begins persisting raw events, one file per window.
func (s *service) StartRecording() *dbus.Error {
	if err := s.sess.StartRecording(); err != nil {
		return dbusErr("StartRecording", err)
	}
	return nil
}

// StopRecording ends event persistence. Accumulation continues.
func (s *service) StopRecording() *dbus.Error {
	if err := s.sess.StopRecording(); err != nil {
		return dbusErr("StopRecording", err)
	}
	return nil
}

// Status reports whether the camera pipeline is running, whether events
// are being persisted, and the active recording directory.
func (s *service) Status() (bool, bool, string, *dbus.Error) {
	return s.sess.CameraOn(), s.sess.Recording(), s.sess.RecordingDir(), nil
}

func dbusErr(method string, err error) *dbus.Error {
	return &dbus.Error{
		Name: dbusName + "." + method,
		Body: []interface{}{err.Error()},
	}
}
