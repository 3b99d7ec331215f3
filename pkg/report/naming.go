// Package report writes run artifacts: the HTML analysis report with its
// raw-view companion, and the plain and sorted text logs.
package report

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// StampLayout formats the timestamp embedded in artifact names.
const StampLayout = "20060102_150405"

// UnknownNode is used when no node number can be recovered from a path.
const UnknownNode = "未知"

// nodePatterns are tried in order against the trace file name.
var nodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`tcp_trace\.(\d+)`),
	regexp.MustCompile(`tcp_trace\.(\d+)\.old`),
	regexp.MustCompile(`tcp_trace\.(\d+)\.\d+`),
	regexp.MustCompile(`tcp_trace\.(\d+)\.l`),
	regexp.MustCompile(`tcp_trace\.(\d+)\.log`),
	regexp.MustCompile(`tcp_trace_(\d+)`),
	regexp.MustCompile(`tcp_?trace[._-](\d+)`),
}

var unsafeNameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// ExtractNode recovers the node number from a trace file path: first from
// the file name, then from any path element of at least two digits.
func ExtractNode(path string) string {
	name := filepath.Base(path)
	for _, p := range nodePatterns {
		if m := p.FindStringSubmatch(name); m != nil {
			return m[1]
		}
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) >= 2 && isDigits(part) {
			return part
		}
	}
	return UnknownNode
}

// SortNodes orders node tokens numerically when all are digits, otherwise
// lexicographically.
func SortNodes(nodes []string) {
	allDigits := true
	for _, n := range nodes {
		if !isDigits(n) {
			allDigits = false
			break
		}
	}
	if !allDigits {
		sort.Strings(nodes)
		return
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		a, _ := strconv.ParseUint(nodes[i], 10, 64)
		b, _ := strconv.ParseUint(nodes[j], 10, 64)
		return a < b
	})
}

// CleanName replaces characters that are unsafe in file names.
func CleanName(s string) string {
	return unsafeNameChars.ReplaceAllString(s, "_")
}

// FileName builds the HTML report name:
// {单节点|多节点}_{A}_{B}_{节点info}_{stamp}.html
func FileName(namespaceA, namespaceB string, paths []string, stamp string) string {
	seen := make(map[string]bool)
	var nodes []string
	for _, p := range paths {
		n := ExtractNode(p)
		if !seen[n] {
			seen[n] = true
			nodes = append(nodes, n)
		}
	}
	SortNodes(nodes)

	scope := "多节点"
	var nodeInfo string
	switch {
	case len(nodes) == 0:
		nodeInfo = "节点" + UnknownNode
	case len(nodes) == 1:
		scope = "单节点"
		nodeInfo = "节点" + nodes[0]
	case len(nodes) <= 3:
		nodeInfo = "节点" + strings.Join(nodes, "+")
	default:
		nodeInfo = fmt.Sprintf("节点%s-%s_共%d个", nodes[0], nodes[len(nodes)-1], len(nodes))
	}

	return fmt.Sprintf("%s_%s_%s_%s_%s.html", scope, CleanName(namespaceA), CleanName(namespaceB), nodeInfo, stamp)
}

// RawName returns the raw-view page name for a report path.
func RawName(reportPath string) string {
	base := filepath.Base(reportPath)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_raw.html"
}

// PlainLogName and SortedLogName name the text exports.
func PlainLogName(stamp string) string  { return "converted_" + stamp + ".log" }
func SortedLogName(stamp string) string { return "sorted_" + stamp + ".log" }

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
