package assets

import "fmt"

// Asset file names inside their areas.
const (
	BaseAPNFile    = "apns.xml"
	PartnerAPNFile = "etc/apns-conf.xml"
	VendorAPNFile  = "telephony/apns-conf.xml"

	PartnerSPNFile = "etc/spn-conf.xml"
	VendorSPNFile  = "telephony/spn-conf.xml"

	VirtualSPNByEfSpnFile = "etc/virtual-spn-conf-by-efspn.xml"
	VirtualSPNByImsiFile  = "etc/virtual-spn-conf-by-imsi.xml"
	VirtualSPNByEfPnnFile = "etc/virtual-spn-conf-by-efpnn.xml"
	VirtualNetsFile       = "etc/virtualNets-conf.xml"
)

// ProfileSPNFile returns the operator-profile variant of the partner SPN
// table, for example etc/spn-conf-op09.xml.
func ProfileSPNFile(profile string) string {
	return fmt.Sprintf("etc/spn-conf-%s.xml", profile)
}

// Layout groups the three asset areas.
type Layout struct {
	// Bundled holds the built-in APN list that defines the asset version.
	Bundled Source

	// System is the partner area (etc/...).
	System Source

	// Vendor is the OEM overlay area (telephony/...).
	Vendor Source
}

// BaseAPNs is the bundled APN list.
func (l Layout) BaseAPNs() Ref { return Ref{Source: l.Bundled, Name: BaseAPNFile} }

// PartnerAPNs is the partner APN list.
func (l Layout) PartnerAPNs() Ref { return Ref{Source: l.System, Name: PartnerAPNFile} }

// VendorAPNs is the vendor overlay of the partner APN list.
func (l Layout) VendorAPNs() Ref { return Ref{Source: l.Vendor, Name: VendorAPNFile} }

// PartnerSPN is the partner SPN table, or its profile variant when profile is set.
func (l Layout) PartnerSPN(profile string) Ref {
	if profile != "" {
		return Ref{Source: l.System, Name: ProfileSPNFile(profile)}
	}
	return Ref{Source: l.System, Name: PartnerSPNFile}
}

// VendorSPN is the vendor overlay of the SPN table.
func (l Layout) VendorSPN() Ref { return Ref{Source: l.Vendor, Name: VendorSPNFile} }

// VirtualSPNByEfSpn is the EF_SPN MVNO table.
func (l Layout) VirtualSPNByEfSpn() Ref { return Ref{Source: l.System, Name: VirtualSPNByEfSpnFile} }

// VirtualSPNByImsi is the IMSI-pattern MVNO table.
func (l Layout) VirtualSPNByImsi() Ref { return Ref{Source: l.System, Name: VirtualSPNByImsiFile} }

// VirtualSPNByEfPnn is the EF_PNN MVNO table.
func (l Layout) VirtualSPNByEfPnn() Ref { return Ref{Source: l.System, Name: VirtualSPNByEfPnnFile} }

// VirtualNets is the EF_GID1 MVNO table.
func (l Layout) VirtualNets() Ref { return Ref{Source: l.System, Name: VirtualNetsFile} }
