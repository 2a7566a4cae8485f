package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/wolfman30/patientsim/internal/transcript"
)

var (
	colorDoctor   = lipgloss.Color("#4A90D9")
	colorStaff    = lipgloss.Color("#D98E4A")
	colorPatient  = lipgloss.Color("#50C878")
	colorProgress = lipgloss.Color("#555555")
)

// turnPrinter writes each turn as it is appended, prefixed with progress.
type turnPrinter struct {
	w        io.Writer
	doctor   lipgloss.Style
	staff    lipgloss.Style
	patient  lipgloss.Style
	progress lipgloss.Style
}

func newTurnPrinter(w io.Writer, plain bool) *turnPrinter {
	p := &turnPrinter{
		w:        w,
		doctor:   lipgloss.NewStyle(),
		staff:    lipgloss.NewStyle(),
		patient:  lipgloss.NewStyle(),
		progress: lipgloss.NewStyle(),
	}
	if !plain {
		p.doctor = p.doctor.Foreground(colorDoctor).Bold(true)
		p.staff = p.staff.Foreground(colorStaff).Bold(true)
		p.patient = p.patient.Foreground(colorPatient).Bold(true)
		p.progress = p.progress.Foreground(colorProgress)
	}
	return p
}

func (p *turnPrinter) ReportTurn(turn transcript.Turn, percent int) {
	var label string
	switch turn.Role {
	case transcript.RoleDoctor:
		label = p.doctor.Render("Doctor")
	case transcript.RoleStaff:
		label = p.staff.Render("Staff")
	default:
		label = p.patient.Render("Patient")
	}
	fmt.Fprintf(p.w, "%s %s: %s\n", p.progress.Render(fmt.Sprintf("[%3d%%]", percent)), label, strings.TrimSpace(turn.Text))
}
