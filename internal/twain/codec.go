package twain

import (
	"fmt"
	"strconv"
	"strings"
)

// Canonical textual payloads. Every structure the dispatcher handles has a
// CSV form: positional, comma-joined fields with no quoting (the wire form
// forbids embedded commas in the string fields it carries).

func splitFields(s string, want int) ([]string, error) {
	fields := strings.Split(s, ",")
	if len(fields) != want {
		return nil, fmt.Errorf("expected %d fields, got %d", want, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	return fields, nil
}

func parseUint(s string, bits int) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, bits)
	}
	return strconv.ParseUint(s, 10, bits)
}

func parseInt(s string, bits int) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, bits)
}

func parseBool(s string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "1", "TRUE":
		return true, nil
	case "0", "FALSE":
		return false, nil
	}
	return false, fmt.Errorf("bad bool %q", s)
}

func boolField(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// CSV renders an Identity as its 12-field canonical form.
func (id Identity) CSV() string {
	return fmt.Sprintf("%d,%d,%d,%d,%d,%s,%d,%d,0x%X,%s,%s,%s",
		id.ID,
		id.Version.Major, id.Version.Minor, id.Version.Language, id.Version.Country,
		id.Version.Info,
		id.ProtocolMajor, id.ProtocolMinor,
		uint32(id.SupportedGroups),
		id.Manufacturer, id.ProductFamily, id.ProductName)
}

// ParseIdentity parses the 12-field canonical identity form.
func ParseIdentity(s string) (Identity, error) {
	f, err := splitFields(s, 12)
	if err != nil {
		return Identity{}, fmt.Errorf("identity: %w", err)
	}
	var id Identity
	v, err := parseUint(f[0], 32)
	if err != nil {
		return Identity{}, fmt.Errorf("identity id: %w", err)
	}
	id.ID = uint32(v)
	nums := [4]*uint16{&id.Version.Major, &id.Version.Minor, &id.Version.Language, &id.Version.Country}
	for i, dst := range nums {
		v, err := parseUint(f[1+i], 16)
		if err != nil {
			return Identity{}, fmt.Errorf("identity version field %d: %w", i, err)
		}
		*dst = uint16(v)
	}
	id.Version.Info = f[5]
	if v, err = parseUint(f[6], 16); err != nil {
		return Identity{}, fmt.Errorf("identity protocol major: %w", err)
	}
	id.ProtocolMajor = uint16(v)
	if v, err = parseUint(f[7], 16); err != nil {
		return Identity{}, fmt.Errorf("identity protocol minor: %w", err)
	}
	id.ProtocolMinor = uint16(v)
	if v, err = parseUint(f[8], 32); err != nil {
		return Identity{}, fmt.Errorf("identity supported groups: %w", err)
	}
	id.SupportedGroups = DataGroup(v)
	id.Manufacturer = f[9]
	id.ProductFamily = f[10]
	id.ProductName = f[11]
	return id, nil
}

// CSV renders a one-value capability container.
func (c Capability) CSV() string {
	return fmt.Sprintf("%s,TWON_ONEVALUE,%d,%s", c.Cap, c.ItemType, c.Value)
}

// ParseCapability parses "CAP,container,itemtype,value". Only the
// one-value container form is accepted; enumerations and ranges stay with
// the driver layer.
func ParseCapability(s string) (Capability, error) {
	f, err := splitFields(s, 4)
	if err != nil {
		return Capability{}, fmt.Errorf("capability: %w", err)
	}
	cap, err := ParseCapID(f[0])
	if err != nil {
		return Capability{}, err
	}
	con := strings.ToUpper(f[1])
	if con != "TWON_ONEVALUE" && con != "5" {
		return Capability{}, fmt.Errorf("unsupported capability container %q", f[1])
	}
	it, err := parseUint(f[2], 16)
	if err != nil {
		return Capability{}, fmt.Errorf("capability item type: %w", err)
	}
	return Capability{Cap: cap, ConType: ConOneValue, ItemType: ItemType(it), Value: f[3]}, nil
}

// CSV renders per-image metadata.
func (i ImageInfo) CSV() string {
	return fmt.Sprintf("%s,%s,%d,%d,%d,%d,%s,%d,%d",
		i.XResolution, i.YResolution,
		i.ImageWidth, i.ImageLength,
		i.SamplesPerPixel, i.BitsPerPixel,
		boolField(i.Planar), i.PixelType, i.Compression)
}

// ParseImageInfo parses the 9-field image metadata form.
func ParseImageInfo(s string) (ImageInfo, error) {
	f, err := splitFields(s, 9)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("imageinfo: %w", err)
	}
	var info ImageInfo
	if info.XResolution, err = ParseFix32(f[0]); err != nil {
		return ImageInfo{}, err
	}
	if info.YResolution, err = ParseFix32(f[1]); err != nil {
		return ImageInfo{}, err
	}
	w, err := parseInt(f[2], 32)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("imageinfo width: %w", err)
	}
	l, err := parseInt(f[3], 32)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("imageinfo length: %w", err)
	}
	spp, err := parseInt(f[4], 16)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("imageinfo samples: %w", err)
	}
	bpp, err := parseInt(f[5], 16)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("imageinfo bpp: %w", err)
	}
	planar, err := parseBool(f[6])
	if err != nil {
		return ImageInfo{}, fmt.Errorf("imageinfo planar: %w", err)
	}
	pt, err := parseInt(f[7], 16)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("imageinfo pixeltype: %w", err)
	}
	comp, err := parseUint(f[8], 16)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("imageinfo compression: %w", err)
	}
	info.ImageWidth = int32(w)
	info.ImageLength = int32(l)
	info.SamplesPerPixel = int16(spp)
	info.BitsPerPixel = int16(bpp)
	info.Planar = planar
	info.PixelType = PixelType(pt)
	info.Compression = Compression(comp)
	return info, nil
}

// CSV renders an image layout frame.
func (l ImageLayout) CSV() string {
	return fmt.Sprintf("%s,%s,%s,%s,%d,%d,%d",
		l.Left, l.Top, l.Right, l.Bottom,
		l.DocumentNumber, l.PageNumber, l.FrameNumber)
}

// ParseImageLayout parses the 7-field layout form.
func ParseImageLayout(s string) (ImageLayout, error) {
	f, err := splitFields(s, 7)
	if err != nil {
		return ImageLayout{}, fmt.Errorf("imagelayout: %w", err)
	}
	var l ImageLayout
	edges := [4]*Fix32{&l.Left, &l.Top, &l.Right, &l.Bottom}
	for i, dst := range edges {
		if *dst, err = ParseFix32(f[i]); err != nil {
			return ImageLayout{}, err
		}
	}
	counters := [3]*uint32{&l.DocumentNumber, &l.PageNumber, &l.FrameNumber}
	for i, dst := range counters {
		v, err := parseUint(f[4+i], 32)
		if err != nil {
			return ImageLayout{}, fmt.Errorf("imagelayout counter %d: %w", i, err)
		}
		*dst = uint32(v)
	}
	return l, nil
}

// CSV renders a memory setup response.
func (m SetupMemXfer) CSV() string {
	return fmt.Sprintf("%d,%d,%d", m.MinBufSize, m.MaxBufSize, m.Preferred)
}

// ParseSetupMemXfer parses "min,max,preferred".
func ParseSetupMemXfer(s string) (SetupMemXfer, error) {
	f, err := splitFields(s, 3)
	if err != nil {
		return SetupMemXfer{}, fmt.Errorf("setupmemxfer: %w", err)
	}
	var m SetupMemXfer
	vals := [3]*uint32{&m.MinBufSize, &m.MaxBufSize, &m.Preferred}
	for i, dst := range vals {
		v, err := parseUint(f[i], 32)
		if err != nil {
			return SetupMemXfer{}, fmt.Errorf("setupmemxfer field %d: %w", i, err)
		}
		*dst = uint32(v)
	}
	return m, nil
}

// CSV renders a file setup request.
func (x SetupFileXfer) CSV() string {
	return fmt.Sprintf("%s,%d,%d", x.FileName, x.Format, x.VRefNum)
}

// ParseSetupFileXfer parses "filename,format,vrefnum".
func ParseSetupFileXfer(s string) (SetupFileXfer, error) {
	f, err := splitFields(s, 3)
	if err != nil {
		return SetupFileXfer{}, fmt.Errorf("setupfilexfer: %w", err)
	}
	format, err := parseUint(f[1], 16)
	if err != nil {
		return SetupFileXfer{}, fmt.Errorf("setupfilexfer format: %w", err)
	}
	vref, err := parseInt(f[2], 16)
	if err != nil {
		return SetupFileXfer{}, fmt.Errorf("setupfilexfer vrefnum: %w", err)
	}
	return SetupFileXfer{FileName: f[0], Format: FileFormat(format), VRefNum: int16(vref)}, nil
}

// CSV renders an end-of-transfer acknowledgement.
func (p PendingXfers) CSV() string {
	return fmt.Sprintf("%d,%d", p.Count, p.EOJ)
}

// ParsePendingXfers parses "count,eoj".
func ParsePendingXfers(s string) (PendingXfers, error) {
	f, err := splitFields(s, 2)
	if err != nil {
		return PendingXfers{}, fmt.Errorf("pendingxfers: %w", err)
	}
	count, err := parseUint(f[0], 16)
	if err != nil {
		return PendingXfers{}, fmt.Errorf("pendingxfers count: %w", err)
	}
	eoj, err := parseUint(f[1], 32)
	if err != nil {
		return PendingXfers{}, fmt.Errorf("pendingxfers eoj: %w", err)
	}
	return PendingXfers{Count: uint16(count), EOJ: uint32(eoj)}, nil
}

// CSV renders a user interface request.
func (u UserInterface) CSV() string {
	return fmt.Sprintf("%s,%s", boolField(u.ShowUI), boolField(u.ModalUI))
}

// ParseUserInterface parses "showui,modalui".
func ParseUserInterface(s string) (UserInterface, error) {
	f, err := splitFields(s, 2)
	if err != nil {
		return UserInterface{}, fmt.Errorf("userinterface: %w", err)
	}
	show, err := parseBool(f[0])
	if err != nil {
		return UserInterface{}, fmt.Errorf("userinterface showui: %w", err)
	}
	modal, err := parseBool(f[1])
	if err != nil {
		return UserInterface{}, fmt.Errorf("userinterface modalui: %w", err)
	}
	return UserInterface{ShowUI: show, ModalUI: modal}, nil
}
