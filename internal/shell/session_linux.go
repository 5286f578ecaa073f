package shell

import (
	"bytes"
	"os"
	"strconv"
	"strings"
)

// sessionMembers lists the pids whose session id is sid.
func sessionMembers(sid int) []int {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil
	}

	want := strconv.Itoa(sid)
	var pids []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		stat, err := os.ReadFile("/proc/" + e.Name() + "/stat")
		if err != nil {
			continue
		}
		// comm may contain spaces and parentheses; fields resume after the last ')'.
		i := bytes.LastIndexByte(stat, ')')
		if i < 0 {
			continue
		}
		// state ppid pgrp session ...
		fields := strings.Fields(string(stat[i+1:]))
		if len(fields) > 3 && fields[3] == want {
			pids = append(pids, pid)
		}
	}
	return pids
}
