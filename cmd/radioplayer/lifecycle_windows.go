//go:build windows

package main

import "os"

func watchLifecycle(chan<- os.Signal) {}

func handleLifecycle(appLifecycle, sessionInputs, os.Signal) {}
