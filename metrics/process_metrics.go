// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

//go:build linux

package metrics

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// IOCollector exposes per-process I/O counters read from /proc/[pid]/io.
// CPU, memory and FD metrics already come from the default ProcessCollector,
// so only the syscall and byte counters are collected here. The indexer is
// SQLite-heavy, which makes write_bytes the interesting one.
type IOCollector struct {
	pid int

	readSyscallsDesc  *prometheus.Desc
	writeSyscallsDesc *prometheus.Desc
	readBytesDesc     *prometheus.Desc
	writeBytesDesc    *prometheus.Desc
}

// NewIOCollector creates an IOCollector for the current process.
func NewIOCollector() *IOCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "process", name), help, nil, nil)
	}
	return &IOCollector{
		pid: os.Getpid(),

		readSyscallsDesc:  desc("read_syscalls_total", "Total number of read syscalls (read, pread)."),
		writeSyscallsDesc: desc("write_syscalls_total", "Total number of write syscalls (write, pwrite)."),
		readBytesDesc:     desc("read_bytes_total", "Total bytes fetched from the storage layer."),
		writeBytesDesc:    desc("write_bytes_total", "Total bytes sent to the storage layer."),
	}
}

// Describe implements prometheus.Collector.
func (c *IOCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.readSyscallsDesc
	ch <- c.writeSyscallsDesc
	ch <- c.readBytesDesc
	ch <- c.writeBytesDesc
}

// Collect implements prometheus.Collector.
func (c *IOCollector) Collect(ch chan<- prometheus.Metric) {
	io, err := c.readProcIO()
	if err != nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.readSyscallsDesc, prometheus.CounterValue, float64(io.readSyscalls))
	ch <- prometheus.MustNewConstMetric(c.writeSyscallsDesc, prometheus.CounterValue, float64(io.writeSyscalls))
	ch <- prometheus.MustNewConstMetric(c.readBytesDesc, prometheus.CounterValue, float64(io.readBytes))
	ch <- prometheus.MustNewConstMetric(c.writeBytesDesc, prometheus.CounterValue, float64(io.writeBytes))
}

type procIO struct {
	readSyscalls  int64
	writeSyscalls int64
	readBytes     int64
	writeBytes    int64
}

// readProcIO parses /proc/[pid]/io, a file of "key: value" lines.
func (c *IOCollector) readProcIO() (*procIO, error) {
	file, err := os.Open(fmt.Sprintf("/proc/%d/io", c.pid))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	result := &procIO{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}

		value, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			logger.Warn("unable to parse io value", "line", line, "err", err)
			continue
		}

		switch {
		case strings.HasPrefix(line, "syscr:"):
			result.readSyscalls = value
		case strings.HasPrefix(line, "syscw:"):
			result.writeSyscalls = value
		case strings.HasPrefix(line, "read_bytes:"):
			result.readBytes = value
		case strings.HasPrefix(line, "write_bytes:"):
			result.writeBytes = value
		}
	}

	return result, scanner.Err()
}

var ioCollectorRegistered atomic.Bool

func registerIOCollector() {
	if ioCollectorRegistered.CompareAndSwap(false, true) {
		prometheus.MustRegister(NewIOCollector())
	}
}
