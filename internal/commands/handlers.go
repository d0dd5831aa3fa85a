package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/octanebot/octanebot/internal/catalog"
	"github.com/octanebot/octanebot/internal/fields"
	"github.com/octanebot/octanebot/internal/forms"
	"github.com/octanebot/octanebot/internal/octane"
	"github.com/octanebot/octanebot/internal/params"
)

func (c *call) get(st octane.Subtype, id string) {
	if id == "" {
		c.reply(noIDMessage)
		return
	}
	c.run("getEntityById", func(ctx context.Context) error {
		form, ok := c.d.forms.Get(st)
		if !ok || form.Empty() {
			return c.reject(fmt.Sprintf("I don't know which fields to bring. Please add at least one field in the response form of the %s.", st.Collection()))
		}

		e, err := c.d.api.GetEntity(ctx, st.Collection(), id, append(form.FieldNames(), "id", "name", "phase"))
		if err != nil {
			return err
		}
		if e == nil {
			return c.reject(fmt.Sprintf("I can't find the entity %s. Try again with a different entity.", st))
		}

		if cards, ok := c.resp.(CardSender); ok {
			err := cards.SendCard(NewCard(e, form))
			if err == nil {
				return nil
			}
			c.d.logger.Warn("failed to send card, falling back to text", zap.Error(err))
		}
		c.send(FallbackText(e, form))
		return nil
	})
}

func (c *call) search(st octane.Subtype, text string) {
	if _, ok := c.ready(); !ok {
		return
	}
	c.run("searchEntity", func(ctx context.Context) error {
		list, err := c.d.api.Search(ctx, st, text)
		if err != nil {
			return err
		}
		if len(list.Data) == 0 {
			c.reply(fmt.Sprintf("No %s found", st))
			return nil
		}
		c.reply(SearchLines(list))
		return nil
	})
}

// fieldMessage returns the reply for a resolver error, or false when err
// is not one.
func fieldMessage(err error) (string, bool) {
	var (
		unknown  *fields.UnknownFieldError
		invalid  *fields.InvalidValueError
		noParent *fields.ParentNotFoundError
	)
	switch {
	case errors.As(err, &unknown):
		return fmt.Sprintf("I can't do that because field %s does not exist. Try again. %s", unknown.Field, helpHint), true
	case errors.As(err, &invalid):
		return fmt.Sprintf("I can't do that because field %s does not support the value %s. Try again using one of these values : %s",
			invalid.Field, invalid.Value, strings.Join(invalid.Valid, ",")), true
	case errors.As(err, &noParent):
		return noParentMessage, true
	default:
		return "", false
	}
}

func (c *call) resolver(cat *catalog.Catalog) *fields.Resolver {
	return &fields.Resolver{Catalog: cat, Parents: c.d.api}
}

// resolveLocal resolves a field that needs only the catalog and replies
// the rejection when it fails. Parent references are not resolved here.
func (c *call) resolveLocal(r *fields.Resolver, schema fields.Schema, name, raw string) (fields.Value, bool) {
	v, err := r.Resolve(c.ctx, schema, name, raw)
	if err != nil {
		msg, ok := fieldMessage(err)
		if !ok {
			msg = failurePrefix + describe(err)
		}
		c.reply(msg)
		return fields.Value{}, false
	}
	return v, true
}

// resolveParent looks up a parent work item inside a run. A parent that
// does not exist is replied to and reported as not found without failing
// the run.
func (c *call) resolveParent(ctx context.Context, r *fields.Resolver, schema fields.Schema, name, raw string) (fields.Value, bool, error) {
	v, err := r.Resolve(ctx, schema, name, raw)
	if err != nil {
		if msg, ok := fieldMessage(err); ok {
			c.reply(msg)
			return fields.Value{}, false, nil
		}
		return fields.Value{}, false, err
	}
	return v, true, nil
}

func (c *call) update(st octane.Subtype, id, assignment string) {
	if id == "" {
		c.reply(noIDMessage)
		return
	}
	cat, ok := c.ready()
	if !ok {
		return
	}

	name, value, hasValue := strings.Cut(assignment, "=")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		c.reply(noFieldMessage)
		return
	}
	schema := fields.SchemaFor(st)
	kind, known := schema.Lookup(name)
	if known && !hasValue {
		c.reply("missing value for field : " + name)
		return
	}
	r := c.resolver(cat)
	payload := octane.Entity{}
	if !known || kind != fields.ParentReference {
		v, ok := c.resolveLocal(r, schema, name, value)
		if !ok {
			return
		}
		v.Apply(payload)
	}

	c.run("updateEntity", func(ctx context.Context) error {
		if kind == fields.ParentReference {
			v, found, err := c.resolveParent(ctx, r, schema, name, value)
			if err != nil || !found {
				return err
			}
			v.Apply(payload)
		}

		updated, err := c.d.api.UpdateEntity(ctx, st.Collection(), id, payload)
		if err != nil {
			return err
		}
		c.reply(fmt.Sprintf("%s %s updated successfully", st, updated.ID()))
		return nil
	})
}

func (c *call) create(st octane.Subtype, args string) {
	cat, ok := c.ready()
	if !ok {
		return
	}
	schema := fields.SchemaFor(st)
	r := c.resolver(cat)

	payload := octane.Entity{}
	if phase, ok := cat.NewPhase(st); ok {
		payload["phase"] = phase.Reference()
	}
	if root := cat.Root(); root != nil {
		payload["parent"] = root.Reference()
	}

	var parent *params.Param
	ps := params.Parse(args)
	for i, p := range ps {
		kind, known := schema.Lookup(p.Key)
		if known && kind == fields.ParentReference {
			parent = &ps[i]
		} else {
			v, ok := c.resolveLocal(r, schema, p.Key, p.Value)
			if !ok {
				return
			}
			v.Apply(payload)
		}
		if p.Value == "" {
			c.reply("missing value for field : " + p.Key)
			return
		}
	}
	if parent == nil && st == octane.Feature {
		c.reply(featureRootReply)
		return
	}

	c.run("createEntity", func(ctx context.Context) error {
		if parent != nil {
			v, found, err := c.resolveParent(ctx, r, schema, parent.Key, parent.Value)
			if err != nil || !found {
				return err
			}
			v.Apply(payload)
		}

		created, err := c.d.api.CreateEntity(ctx, st.Collection(), payload)
		if err != nil {
			return err
		}
		c.reply(fmt.Sprintf("%s created successfully. ID: %s", st, created.ID()))
		return nil
	})
}

// splitFields splits a comma separated field list, dropping blanks.
func splitFields(list string) []string {
	var out []string
	for _, f := range strings.Split(list, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func (c *call) display(st octane.Subtype, full bool, list string) {
	requested := splitFields(list)
	size := forms.SizeMedium
	if full {
		size = forms.SizeLarge
	}
	if len(requested) == 0 {
		c.reply(noFieldMessage)
		return
	}
	c.run("addFieldMetadataToForm", func(ctx context.Context) error {
		md, err := c.d.api.FieldMetadata(ctx, st.APIName(), requested)
		if err != nil {
			return err
		}
		added, skipped, err := c.d.forms.Add(st, md, size)
		if err != nil {
			c.d.logger.Warn("could not persist display settings", zap.Error(err))
		}

		var lines []string
		if len(added) > 0 {
			lines = append(lines, fmt.Sprintf("Successfully added the fields with the names %s in the get %s form.", strings.Join(added, ","), st))
		}
		if len(skipped) > 0 {
			lines = append(lines, fmt.Sprintf("The fields %s are already present in the %s form.", strings.Join(skipped, ","), st))
		}
		var notFound []string
		for _, name := range requested {
			if !containsFold(added, name) && !containsFold(skipped, name) {
				notFound = append(notFound, name)
			}
		}
		if len(notFound) > 0 {
			lines = append(lines, fmt.Sprintf("The fields %s are not %s fields.", strings.Join(notFound, ","), st))
		}
		c.send(strings.Join(lines, "\n"))
		return nil
	})
}

func (c *call) hide(st octane.Subtype, byLabel bool, list string) {
	requested := splitFields(list)
	if len(requested) == 0 {
		c.reply(noFieldMessage)
		return
	}
	removed, notFound, err := c.d.forms.Remove(st, requested, byLabel)
	if err != nil {
		c.d.logger.Warn("could not persist display settings", zap.Error(err))
	}

	var lines []string
	if len(removed) > 0 {
		lines = append(lines, fmt.Sprintf("Successfully removed the fields with the names %s from the get %s form.", strings.Join(removed, ","), st))
	}
	if len(notFound) > 0 {
		lines = append(lines, fmt.Sprintf("The fields %s were not found in the get %s form.", strings.Join(notFound, ","), st))
	}
	c.send(strings.Join(lines, "\n"))
}

func (c *call) reset(st octane.Subtype) {
	c.run("resetResponseForm", func(ctx context.Context) error {
		form, err := c.d.loader.Load(ctx, st, c.d.forms.Color(st))
		if err != nil {
			return err
		}
		if err := c.d.forms.Reset(st, form); err != nil {
			c.d.logger.Warn("could not persist display settings", zap.Error(err))
		}
		c.send(fmt.Sprintf("The get %s form will now display the fields that are in the octane edit form of the %s", st, st))
		return nil
	})
}
