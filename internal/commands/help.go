package commands

import "strings"

const allSubtypes = `"defect|userstory|feature|epic"`

// usage lists the commands; lines starting with "|" continue the previous one.
var usage = []string{
	`octane get <` + allSubtypes + `> <id> - List details about an entity.`,
	`octane reset <` + allSubtypes + `> display - The get command for the given entity will display all the fields in the octane edit form of that entity`,
	`octane display ["full|f"] <` + allSubtypes + `> <fieldName>[,...] - The get command for the given entity will also display the given fields. The name of a field can be found in Octane->Spaces->Entities->Select the wanted entity->Fields. If the "full" flag is given, the fields will be treated as a "full" field from the octane forms.`,
	`octane <"-|!|do not|don't"> display ["label|labels|l"] <` + allSubtypes + `> <fieldName>[,...] - The get command for the given entity will no longer display the given fields. If the "label" flag is given, the fieldNames will be interpreted as fieldLabels.`,
	`octane search <` + allSubtypes + `> <text> - Search for an entity by name, description or ID. Only the first 25 results will be displayed`,
	`octane update <` + allSubtypes + `> <id> <fieldName>=<fieldValue> - Update the fields of an entity.`,
	`|Only the name, description, priority, severity, feature or parent can be updated for the defect entities`,
	`|Only the name, description, feature or parent can be updated for the userstory entity`,
	`|Only the name, description, priority, epic or parent can be updated for the feature entity`,
	`|Only the name or description can be updated for the epic entity`,
	`octane create defect name=<name>,severity=<severity>[,feature=<featureId>] - Create a defect.`,
	`octane create userstory name=<name>[,feature=<featureId>] - Create a user story.`,
	`octane create feature name=<name>,epic=<epicId> - Create a feature.`,
	`octane create epic name=<name> - Create an epic.`,
	`octane status - Show the status of your last octane command and of the bot.`,
	`octane help - Show this help.`,
}

// HelpText returns the command reference shown by "octane help".
func HelpText(botName string) string {
	var b strings.Builder
	b.WriteString(" All the commands are case insensitive and must be addressed to " + botName + "\n" +
		"<> - Required parameter\n" +
		`"" - Use the exact string as input` + "\n" +
		`"option1|option 2|longer option 3" - Use the strings "option1", "option 2" or "longer option 3" as input` + "\n" +
		"[] - Optional parameter\n" +
		"<parameter>[,...] - The previous parameter can be given multiple times. ex: parameter1,parameter2,parameter3\n")
	for _, line := range usage {
		if rest, ok := strings.CutPrefix(line, "|"); ok {
			b.WriteString("\n\t" + rest)
			continue
		}
		b.WriteString("\n\n" + line)
	}
	return b.String()
}
