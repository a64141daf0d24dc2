//go:build !linux

/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package cev

import "time"

// Poller is unavailable on this platform.
type Poller struct{}

func (p *Poller) Init() error                          { return ErrUnsupported }
func (p *Poller) Close() error                         { return nil }
func (p *Poller) Add(int, Events, Callback) error      { return ErrUnsupported }
func (p *Poller) Modify(int, Events) error             { return ErrUnsupported }
func (p *Poller) Remove(int) error                     { return ErrUnsupported }
func (p *Poller) Registered(int) bool                  { return false }
func (p *Poller) Len() int                             { return 0 }
func (p *Poller) Wait(time.Duration) (int, error)      { return 0, ErrUnsupported }
func (p *Poller) Dispatch(int)                         {}
func Read(int, []byte) (int, error)                    { return 0, ErrUnsupported }
func Write(int, []byte) (int, error)                   { return 0, ErrUnsupported }
func Close(int) error                                  { return ErrUnsupported }
func SetNonblock(int) error                            { return ErrUnsupported }
func IsAgain(error) bool                               { return false }
func IsInProgress(error) bool                          { return false }
func TimerOpen() (int, error)                          { return -1, ErrUnsupported }
func TimerArm(int, time.Duration, time.Duration) error { return ErrUnsupported }
func TimerDisarm(int) error                            { return ErrUnsupported }
func TimerRead(int) (uint64, error)                    { return 0, ErrUnsupported }
func EventfdOpen() (int, error)                        { return -1, ErrUnsupported }
func EventfdSignal(int) error                          { return ErrUnsupported }
func EventfdDrain(int) (uint64, error)                 { return 0, ErrUnsupported }
func UnixSocket() (int, error)                         { return -1, ErrUnsupported }
func Bind(int, string) error                           { return ErrUnsupported }
func Listen(int, int) error                            { return ErrUnsupported }
func Accept(int) (int, error)                          { return -1, ErrUnsupported }
func Connect(int, string) error                        { return ErrUnsupported }
func SocketError(int) error                            { return ErrUnsupported }
func ShutdownWrite(int) error                          { return ErrUnsupported }
func Mkfifo(string, uint32) error                      { return ErrUnsupported }
func OpenFIFO(string) (int, error)                     { return -1, ErrUnsupported }
