package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// RenderItineraryPDF lays out an itinerary on A4 and returns the raw bytes
// (no filesystem needed).
func RenderItineraryPDF(it GeneratedItinerary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 25)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-18)
		pdf.SetDrawColor(200, 200, 200)
		pdf.SetLineWidth(0.3)
		pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 8,
			tr(fmt.Sprintf("Travel Planner Pro · Page %d · Generated %s", pdf.PageNo(), time.Now().Format("02 Jan 2006"))),
			"", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	// ── Header Bar ───────────────────────────────────────────
	pdf.SetFillColor(0, 102, 204)
	pdf.Rect(0, 0, 210, 28, "F")
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(20, 8)
	pdf.CellFormat(170, 10, tr("Your Travel Itinerary to "+destinationOrDefault(it)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(20, 18)
	pdf.CellFormat(170, 6, "Travel Planner Pro", "", 1, "L", false, 0, "")

	pdf.SetY(35)
	pdf.SetTextColor(0, 0, 0)

	sectionHeader := func(title string) {
		pdf.SetFillColor(0, 102, 204)
		pdf.SetTextColor(255, 255, 255)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(170, 8, tr("  "+title), "", 1, "L", true, 0, "")
		pdf.SetTextColor(0, 0, 0)
		pdf.Ln(2)
	}

	bullets := func(items []string) {
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(40, 40, 40)
		for _, item := range items {
			pdf.SetX(24)
			pdf.MultiCell(166, 5, tr("- "+item), "", "L", false)
		}
	}

	// ── Summary ───────────────────────────────────────────────
	if it.Summary != "" {
		sectionHeader("Overview")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetTextColor(40, 40, 40)
		pdf.MultiCell(170, 5, tr(it.Summary), "", "L", false)
		pdf.Ln(4)
	}

	// ── Days ──────────────────────────────────────────────────
	for _, d := range it.DailyPlans {
		title := fmt.Sprintf("Day %d", d.Day)
		if d.Date != "" {
			title += ": " + d.Date
		}
		sectionHeader(title)

		if d.ArrivalInfo != nil && *d.ArrivalInfo != "" {
			pdf.SetFont("Helvetica", "I", 10)
			pdf.SetTextColor(100, 100, 100)
			pdf.MultiCell(170, 5, tr(*d.ArrivalInfo), "", "L", false)
			pdf.Ln(1)
		}

		for _, s := range orderedSlots(d.TimeSlots) {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetTextColor(0, 102, 204)
			pdf.CellFormat(170, 6, tr(fmt.Sprintf("%s (%s)", s.Name, s.Time)), "", 1, "L", false, 0, "")
			bullets(s.Activities)
		}

		if len(d.Highlights) > 0 {
			pdf.SetFont("Helvetica", "B", 10)
			pdf.SetTextColor(20, 20, 20)
			pdf.MultiCell(170, 5, tr("Highlights: "+strings.Join(d.Highlights, ", ")), "", "L", false)
		}
		pdf.Ln(4)
	}

	if len(it.PackingList) > 0 {
		sectionHeader("Packing List")
		bullets(it.PackingList)
		pdf.Ln(4)
	}
	if len(it.LocalTips) > 0 {
		sectionHeader("Local Tips")
		bullets(it.LocalTips)
	}

	// ── Write to buffer ───────────────────────────────────────
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("PDF output failed: %w", err)
	}
	return buf.Bytes(), nil
}
