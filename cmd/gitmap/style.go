package main

import "github.com/charmbracelet/lipgloss"

var (
	branchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	commitStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	tagStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	addedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	removedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	modifiedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	conflictStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Faint(true)
)
