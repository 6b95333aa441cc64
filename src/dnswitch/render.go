// Copyright (c) 2026 rizalgns All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

package dnswitch

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
)

// localStubAddress is the systemd-resolved stub listener that resolv.conf
// points at while DNS-over-TLS is active.
const localStubAddress = "127.0.0.53"

// RenderResolvConf produces the live resolver file content for a provider.
// The output is deterministic: rendering the same provider and DoT flag
// twice yields byte-identical content, which is what makes the idempotent
// no-op check in Manager.Switch possible.
func RenderResolvConf(p Provider, enableDoT bool) []byte {
	var b bytes.Buffer
	if enableDoT {
		fmt.Fprintf(&b, "# Generated by dnswitch - %s (DNS-over-TLS)\n", p.Name)
		fmt.Fprintf(&b, "nameserver %s\n", localStubAddress)
		b.WriteString("options edns0 trust-ad\n")
		return b.Bytes()
	}

	fmt.Fprintf(&b, "# Generated by dnswitch - %s\n", p.Name)
	for _, addr := range p.Addresses() {
		fmt.Fprintf(&b, "nameserver %s\n", addr)
	}
	return b.Bytes()
}

// RenderDoTDescriptor produces the resolver-service descriptor that
// enables encrypted transport for the provider: its addresses pinned to
// the provider's TLS hostname, with DNSOverTLS switched on.
func RenderDoTDescriptor(p Provider) []byte {
	var servers []string
	for _, addr := range p.Addresses() {
		servers = append(servers, addr+"#"+p.DoTHostname)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "# Generated by dnswitch - %s (DNS-over-TLS)\n", p.Name)
	b.WriteString("[Resolve]\n")
	fmt.Fprintf(&b, "DNS=%s\n", strings.Join(servers, " "))
	b.WriteString("Domains=~.\n")
	b.WriteString("DNSOverTLS=yes\n")
	b.WriteString("DNSSEC=no\n")
	return b.Bytes()
}

// RenderDefaultDescriptor produces the neutral resolver-service descriptor
// written on reset, returning transport control to the service defaults.
func RenderDefaultDescriptor() []byte {
	var b bytes.Buffer
	b.WriteString("# Reset by dnswitch\n")
	b.WriteString("[Resolve]\n")
	b.WriteString("#DNS=\n")
	b.WriteString("#FallbackDNS=\n")
	b.WriteString("#DNSOverTLS=no\n")
	return b.Bytes()
}

// ParseNameservers extracts the nameserver addresses from resolver file
// content, in order of appearance.
func ParseNameservers(content []byte) []string {
	var servers []string
	sc := bufio.NewScanner(bytes.NewReader(content))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "nameserver") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 1 {
			servers = append(servers, fields[1])
		}
	}
	return servers
}
