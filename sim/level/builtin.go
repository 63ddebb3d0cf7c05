package level

// Builtin returns the standard three-level campaign.
func Builtin() *Catalog {
	return &Catalog{Levels: []Level{
		{
			Title:     "Alpha Test",
			Schedules: []ScheduleSpec{{RampupSeconds: 5, MaxRPS: 2, RampdownSeconds: 5}},
			IntroText: "For this first test, we don't really care about response times that much, " +
				"but every single request has to be handled, don't drop any!",
			SuccessText: "Woah, nice! Now we can finally move on to launching the website!",
			FailureTexts: []string{
				"You couldn't even handle the alpha test? :(",
				"I thought you said you've done this before!",
				"If you can't handle this, I don't know...",
				"Erhm, maybe I know some other smart people",
			},
			AvailableServers:        1,
			UpgradePoints:           5,
			RequiredHandledRequests: 1.0,
			RequiredAvgResponseTime: 10.0,
		},
		{
			Title:     "Website Launch",
			Schedules: []ScheduleSpec{{RampupSeconds: 10, MaxRPS: 5, RampdownSeconds: 10}},
			IntroText: "Time to launch the website! Expect a lot more requests over a longer timeframe. " +
				"I've gotten you some more servers too, don't forget you can change their mode to Proxy!",
			SuccessText: "Wow, that went great! Only time can tell what will come next...",
			FailureTexts: []string{
				"This was our only shot and you ruined it...",
				"Not sure how we're supposed to recover from this",
				"But the alpha test went well, and now this?",
				"Sometimes I think you're not even trying",
			},
			AvailableServers:        4,
			UpgradePoints:           15,
			RequiredHandledRequests: 0.8,
			RequiredAvgResponseTime: 10.0,
		},
		{
			Title:     "GMTK Game Jam",
			Schedules: []ScheduleSpec{{RampupSeconds: 30, MaxRPS: 20, RampdownSeconds: 30}},
			IntroText: "This crazy YouTube person has decided to use our platform for hosting their game jam! " +
				"It's gonna be a ton of fun, but prepare for an astronomical load! " +
				"I've given you access to extra hardware of course",
			SuccessText: "Wow, that went great! Only time can tell what will come next...",
			FailureTexts: []string{
				"We knew it would be difficult, but who knew this hard?",
				"Maybe we should just give up...",
				"Sometimes, the world is not on your side",
				"Where did you learn this stuff anyways?",
			},
			AvailableServers:        6,
			UpgradePoints:           80,
			RequiredHandledRequests: 0.7,
			RequiredAvgResponseTime: 20.0,
		},
	}}
}
