package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/xavierca1/route2rise-console/internal/entity"
	"github.com/xavierca1/route2rise-console/internal/shell"
	"github.com/xavierca1/route2rise-console/internal/usecase"
)

func (a *app) leadsCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: leadctl leads list|get|create|update|delete|interact")
	}
	sub, args := args[0], args[1:]

	view := shell.ViewLead
	if sub == "list" {
		view = shell.ViewLeads
	}
	if err := a.authorize(ctx, view); err != nil {
		return err
	}

	var err error
	switch sub {
	case "list":
		err = a.listLeads(ctx, args)
	case "get":
		err = a.withID(args, func(id string) error {
			lead, err := a.leads.Get(ctx, id)
			if err != nil {
				return err
			}
			printLead(lead)
			return nil
		})
	case "create":
		err = a.saveLead(ctx, "", args)
	case "update":
		if len(args) == 0 {
			return errors.New("usage: leadctl leads update <id> [flags]")
		}
		err = a.saveLead(ctx, args[0], args[1:])
	case "delete":
		err = a.withID(args, func(id string) error {
			res, err := a.leads.Delete(ctx, id)
			if err != nil {
				return err
			}
			fmt.Println(res.Message)
			return nil
		})
	case "interact":
		err = a.interact(ctx, args)
	default:
		return fmt.Errorf("unknown leads command %q", sub)
	}

	if err != nil && !errors.Is(err, flag.ErrHelp) {
		return errors.New(usecase.Message(err))
	}
	return nil
}

func (a *app) listLeads(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("leads list", flag.ContinueOnError)
	var q entity.LeadQuery
	fs.IntVar(&q.Skip, "skip", 0, "leads to skip")
	fs.IntVar(&q.Limit, "limit", 0, "page size")
	fs.StringVar(&q.Status, "status", "", "filter by status")
	fs.StringVar(&q.Sector, "sector", "", "filter by sector")
	fs.StringVar(&q.AssignedTo, "assigned-to", "", "filter by owner")
	fs.StringVar(&q.Search, "search", "", "search company, email or phone")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list, err := a.leads.List(ctx, q)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(os.Stdout, list)
	}
	printLeads(os.Stdout, list.Leads)
	fmt.Printf("\n%d of %d leads\n", len(list.Leads), list.Total)
	return nil
}

func (a *app) saveLead(ctx context.Context, id string, args []string) error {
	fs := flag.NewFlagSet("leads save", flag.ContinueOnError)
	var in entity.LeadInput
	fs.StringVar(&in.CompanyName, "company", "", "company name")
	fs.StringVar(&in.Sector, "sector", "", "sector")
	fs.StringVar(&in.Status, "status", "", "status")
	fs.StringVar(&in.Email, "email", "", "contact email")
	fs.StringVar(&in.MobileNumber, "mobile", "", "contact phone")
	fs.StringVar(&in.Notes, "notes", "", "notes")
	fs.StringVar(&in.AssignedTo, "assigned-to", "", "owner")
	followUp := fs.String("follow-up", "", "next follow-up date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *followUp != "" {
		ts, err := entity.ParseTimestamp(*followUp)
		if err != nil {
			return err
		}
		in.NextFollowUpDate = &ts
	}

	var (
		lead *entity.Lead
		err  error
	)
	if id == "" {
		if in.CompanyName == "" {
			return errors.New("-company is required")
		}
		lead, err = a.leads.Create(ctx, in)
	} else {
		lead, err = a.leads.Update(ctx, id, in)
	}
	if err != nil {
		return err
	}
	printLead(lead)
	return nil
}

func (a *app) interact(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: leadctl leads interact <id> -action <action> [-notes text]")
	}
	id := args[0]

	fs := flag.NewFlagSet("leads interact", flag.ContinueOnError)
	action := fs.String("action", "", "what happened, e.g. call")
	notes := fs.String("notes", "", "optional notes")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *action == "" {
		return errors.New("-action is required")
	}

	lead, err := a.leads.AddInteraction(ctx, id, *action, *notes)
	if err != nil {
		return err
	}
	printLead(lead)
	return nil
}

func (a *app) withID(args []string, fn func(id string) error) error {
	if len(args) != 1 {
		return errors.New("expected exactly one lead id")
	}
	return fn(args[0])
}

func printLead(l *entity.Lead) {
	fmt.Printf("%s  %s\n", l.ID, l.CompanyName)
	fmt.Printf("  sector:     %s\n", orDash(l.Sector))
	fmt.Printf("  status:     %s\n", orDash(l.Status))
	fmt.Printf("  owner:      %s\n", orDash(l.AssignedTo))
	fmt.Printf("  email:      %s\n", orDash(l.Email))
	fmt.Printf("  mobile:     %s\n", orDash(l.MobileNumber))
	fmt.Printf("  follow-up:  %s\n", formatDate(l.NextFollowUpDate))
	if l.Notes != "" {
		fmt.Printf("  notes:      %s\n", l.Notes)
	}
	for _, it := range l.InteractionHistory {
		note := ""
		if it.Notes != nil {
			note = " - " + *it.Notes
		}
		fmt.Printf("  %s  %s%s\n", formatDate(it.Timestamp), it.Action, note)
	}
}
