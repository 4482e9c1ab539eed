package tieout

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var grouper = message.NewPrinter(language.English)

// Shareholder is one aggregated position from a Carta export.
type Shareholder struct {
	Name         string  `json:"name"`
	Shares       float64 `json:"shares"`
	ShareClass   string  `json:"share_class"`
	OwnershipPct float64 `json:"ownership_pct"`
}

// Table is a parsed Carta cap table.
type Table struct {
	Shareholders []Shareholder `json:"shareholders"`
	TotalShares  float64       `json:"total_shares"`
}

// headerScanRows is how deep into a sheet the header search goes. Carta
// exports often carry a few preamble rows above the table.
const headerScanRows = 5

var skipNameExact = map[string]bool{"total": true, "totals": true, "grand total": true, "": true}

var skipNameFragments = []string{
	"total issued", "total outstanding", "options", "shares available", "fully diluted", "percentage",
}

// ParseCarta reads a Carta-exported cap table. The first sheet yielding
// shareholder rows wins; duplicate names within the export are aggregated.
func ParseCarta(path string) (*Table, error) {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer workbook.Close()

	var parsed []Shareholder
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			continue
		}

		headerRow, headers := findHeaderRow(rows)
		if headerRow < 0 {
			continue
		}
		nameCol, sharesCol, ownershipCol := detectColumns(headers)
		if nameCol < 0 || sharesCol < 0 {
			continue
		}

		for _, row := range rows[headerRow+1:] {
			if entry, ok := parseShareholderRow(row, nameCol, sharesCol, ownershipCol); ok {
				parsed = append(parsed, entry)
			}
		}
		if len(parsed) > 0 {
			break
		}
	}

	table := &Table{}
	aggregated := map[string]int{}
	for _, entry := range parsed {
		if idx, seen := aggregated[entry.Name]; seen {
			table.Shareholders[idx].Shares += entry.Shares
			continue
		}
		aggregated[entry.Name] = len(table.Shareholders)
		table.Shareholders = append(table.Shareholders, entry)
	}
	for _, entry := range table.Shareholders {
		table.TotalShares += entry.Shares
	}
	if table.TotalShares > 0 {
		for i := range table.Shareholders {
			pct := table.Shareholders[i].Shares / table.TotalShares * 100
			table.Shareholders[i].OwnershipPct = math.Round(pct*100) / 100
		}
	}
	return table, nil
}

func findHeaderRow(rows [][]string) (int, []string) {
	limit := len(rows)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		lowered := make([]string, len(rows[i]))
		for j, cell := range rows[i] {
			lowered[j] = strings.ToLower(strings.TrimSpace(cell))
		}
		for _, header := range lowered {
			if strings.Contains(header, "name") || strings.Contains(header, "stakeholder") {
				return i, lowered
			}
		}
	}
	return -1, nil
}

func detectColumns(headers []string) (nameCol, sharesCol, ownershipCol int) {
	nameCol, sharesCol, ownershipCol = -1, -1, -1
	for i, header := range headers {
		if nameCol < 0 && (strings.Contains(header, "stakeholder name") || strings.Contains(header, "name")) {
			nameCol = i
		}
		if sharesCol < 0 && (strings.Contains(header, "outstanding shares") ||
			strings.Contains(header, "quantity outstanding") || strings.Contains(header, "shares outstanding")) {
			sharesCol = i
		}
		if ownershipCol < 0 && (strings.Contains(header, "outstanding ownership") ||
			strings.Contains(header, "fully diluted ownership")) {
			ownershipCol = i
		}
	}
	if sharesCol < 0 {
		for i, header := range headers {
			if strings.Contains(header, "common") && (strings.Contains(header, "cs") || strings.Contains(header, "stock")) {
				sharesCol = i
				break
			}
		}
	}
	return nameCol, sharesCol, ownershipCol
}

func parseShareholderRow(row []string, nameCol, sharesCol, ownershipCol int) (Shareholder, bool) {
	if nameCol >= len(row) || sharesCol >= len(row) {
		return Shareholder{}, false
	}
	name := strings.TrimSpace(row[nameCol])
	lowered := strings.ToLower(name)
	if skipNameExact[lowered] {
		return Shareholder{}, false
	}
	for _, fragment := range skipNameFragments {
		if strings.Contains(lowered, fragment) {
			return Shareholder{}, false
		}
	}

	sharesRaw := strings.NewReplacer(",", "", "$", "").Replace(strings.TrimSpace(row[sharesCol]))
	shares, err := strconv.ParseFloat(sharesRaw, 64)
	if err != nil || shares <= 0 {
		return Shareholder{}, false
	}

	ownership := 0.0
	if ownershipCol >= 0 && ownershipCol < len(row) {
		raw := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(row[ownershipCol]), "%"))
		if raw != "" {
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
				ownership = parsed
			}
		}
	}

	return Shareholder{Name: name, Shares: shares, ShareClass: "Common Stock", OwnershipPct: ownership}, true
}
